package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/pkg/validate"
	"github.com/lapublica/platform/internal/service/outbound"
)

// Page size bounds for Messages.
const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Service implements messaging.
type Service struct {
	repo     Repository
	users    Users
	notifier outbound.Notifier
	pub      outbound.Publisher
	now      func() time.Time
}

// NewService creates a conversation service.
func NewService(repo Repository, users Users, notifier outbound.Notifier, pub outbound.Publisher) *Service {
	return &Service{repo: repo, users: users, notifier: notifier, pub: pub, now: time.Now}
}

// StartInput opens a conversation.
type StartInput struct {
	ParticipantIDs []string `json:"participant_ids"`
	Subject        string   `json:"subject"`
	Body           string   `json:"body"`
}

func checkBody(v validate.Errors, body string) {
	n := utf8.RuneCountInString(body)
	if n == 0 {
		v.Add("body", "is required")
	} else if n > domain.MaxMessageLength {
		v.Add("body", fmt.Sprintf("must be at most %d characters", domain.MaxMessageLength))
	}
}

// Start opens a conversation from actor to the given participants and
// posts the first message. A two-person conversation reuses the existing
// direct thread between them.
func (s *Service) Start(ctx context.Context, actor domain.Actor, in StartInput) (*domain.Conversation, error) {
	body := strings.TrimSpace(in.Body)
	subject := strings.TrimSpace(in.Subject)
	v := validate.Errors{}
	checkBody(v, body)
	if subject != "" {
		v.Length("subject", subject, 1, 200)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	ids := []string{actor.UserID}
	seen := map[string]bool{actor.UserID: true}
	for _, id := range in.ParticipantIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) < 2 {
		return nil, ErrNoRecipients
	}
	for _, id := range ids[1:] {
		u, err := s.users.Get(ctx, id)
		if err != nil || !u.Active {
			return nil, ErrInactiveRecipient
		}
		if actor.Role == domain.RoleEmployee && u.Role == domain.RoleEmployee {
			return nil, ErrEmployeeRecipients
		}
	}

	now := s.now().UTC()
	var key string
	if len(ids) == 2 {
		key = domain.DirectKey(ids[0], ids[1])
		existing, err := s.repo.FindDirect(ctx, key)
		if err == nil {
			if _, err := s.Send(ctx, actor, existing.ID, body); err != nil {
				return nil, err
			}
			return s.repo.Get(ctx, existing.ID, actor.UserID)
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	c := &domain.Conversation{
		ID:            uuid.New().String(),
		Subject:       subject,
		IsDirect:      key != "",
		CreatedBy:     actor.UserID,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	m := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: c.ID,
		SenderID:       actor.UserID,
		Body:           body,
		CreatedAt:      now,
	}
	if err := s.repo.Create(ctx, c, ids, key, m); err != nil {
		if errors.Is(err, ErrDirectExists) {
			existing, ferr := s.repo.FindDirect(ctx, key)
			if ferr != nil {
				return nil, ferr
			}
			if _, err := s.Send(ctx, actor, existing.ID, body); err != nil {
				return nil, err
			}
			return s.repo.Get(ctx, existing.ID, actor.UserID)
		}
		return nil, err
	}
	s.fanOut(ctx, actor.UserID, ids, m)
	return s.repo.Get(ctx, c.ID, actor.UserID)
}

// Send posts a message to a conversation the actor participates in.
func (s *Service) Send(ctx context.Context, actor domain.Actor, conversationID, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	v := validate.Errors{}
	checkBody(v, body)
	if err := v.Err(); err != nil {
		return nil, err
	}
	parts, err := s.participants(ctx, actor.UserID, conversationID)
	if err != nil {
		return nil, err
	}

	m := &domain.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		SenderID:       actor.UserID,
		Body:           body,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.Append(ctx, m); err != nil {
		return nil, err
	}
	ids := make([]string, len(parts))
	for i, p := range parts {
		ids[i] = p.UserID
	}
	s.fanOut(ctx, actor.UserID, ids, m)
	return m, nil
}

func (s *Service) participants(ctx context.Context, userID, conversationID string) ([]domain.Participant, error) {
	parts, err := s.repo.Participants(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrNotFound
	}
	for _, p := range parts {
		if p.UserID == userID {
			return parts, nil
		}
	}
	return nil, ErrNotParticipant
}

// fanOut notifies and pushes m to every participant but the sender.
func (s *Service) fanOut(ctx context.Context, senderID string, ids []string, m *domain.Message) {
	senderName := "Nou missatge"
	if u, err := s.users.Get(ctx, senderID); err == nil {
		senderName = u.Name
		m.SenderName = u.Name
	}
	var others []string
	for _, id := range ids {
		if id == senderID {
			continue
		}
		others = append(others, id)
		err := s.notifier.Notify(ctx, id, outbound.Note{
			Type:  domain.NotifyNewMessage,
			Title: senderName,
			Body:  domain.Preview(m.Body),
			Link:  "/conversations/" + m.ConversationID,
		})
		if err != nil {
			logger.Warn("conversation: notify failed", "conversation_id", m.ConversationID, "error", err)
		}
	}
	if len(others) == 0 {
		return
	}
	if err := s.pub.Publish(ctx, outbound.Event{Type: outbound.EventMessage, Recipients: others, Payload: m}); err != nil {
		logger.Warn("conversation: publish failed", "conversation_id", m.ConversationID, "error", err)
	}
}

// List returns the actor's conversations.
func (s *Service) List(ctx context.Context, actor domain.Actor, f ListFilter) ([]domain.Conversation, int, error) {
	return s.repo.List(ctx, actor.UserID, f)
}

// Get returns one conversation with its participants.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Conversation, error) {
	return s.repo.Get(ctx, id, actor.UserID)
}

// Messages pages backwards through a conversation. limit is clamped to
// [1, MaxPageSize]; zero means DefaultPageSize.
func (s *Service) Messages(ctx context.Context, actor domain.Actor, id string, before *Cursor, limit int) ([]domain.Message, error) {
	if _, err := s.participants(ctx, actor.UserID, id); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return s.repo.Messages(ctx, id, before, limit)
}

// MarkRead records that the actor has read the conversation up to now.
func (s *Service) MarkRead(ctx context.Context, actor domain.Actor, id string) error {
	if _, err := s.participants(ctx, actor.UserID, id); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, id, actor.UserID, s.now().UTC())
}

// Archive hides or restores the conversation for the actor only.
func (s *Service) Archive(ctx context.Context, actor domain.Actor, id string, archived bool) error {
	if _, err := s.participants(ctx, actor.UserID, id); err != nil {
		return err
	}
	return s.repo.SetArchived(ctx, id, actor.UserID, archived)
}

// UnreadTotal counts unread messages across all the actor's conversations.
func (s *Service) UnreadTotal(ctx context.Context, actor domain.Actor) (int, error) {
	return s.repo.UnreadTotal(ctx, actor.UserID)
}
