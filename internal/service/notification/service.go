package notification

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/service/outbound"
)

// Service implements notification storage and delivery.
type Service struct {
	repo Repository
	pub  outbound.Publisher
	now  func() time.Time
}

var _ outbound.Notifier = (*Service)(nil)

// NewService creates a notification service. pub receives one realtime
// event per created notification.
func NewService(repo Repository, pub outbound.Publisher) *Service {
	return &Service{repo: repo, pub: pub, now: time.Now}
}

func (s *Service) build(userID string, n outbound.Note) (domain.Notification, error) {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return domain.Notification{}, ErrMissingTitle
	}
	p := n.Priority
	if !p.Valid() {
		p = domain.PriorityNormal
	}
	t := n.Type
	if t == "" {
		t = domain.NotifySystem
	}
	return domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      t,
		Title:     title,
		Body:      n.Body,
		Link:      n.Link,
		Priority:  p,
		CreatedAt: s.now().UTC(),
	}, nil
}

// Notify creates a notification for one user and publishes it.
func (s *Service) Notify(ctx context.Context, userID string, n outbound.Note) error {
	row, err := s.build(userID, n)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(ctx, &row); err != nil {
		return err
	}
	s.publish(ctx, []domain.Notification{row})
	return nil
}

// NotifyRole fans n out to every active user with role.
func (s *Service) NotifyRole(ctx context.Context, role domain.Role, n outbound.Note) (int, error) {
	if !role.Valid() {
		return 0, ErrInvalidRole
	}
	tmpl, err := s.build("", n)
	if err != nil {
		return 0, err
	}
	rows, err := s.repo.InsertForRole(ctx, role, tmpl)
	if err != nil {
		return 0, err
	}
	s.publish(ctx, rows)
	return len(rows), nil
}

func (s *Service) publish(ctx context.Context, rows []domain.Notification) {
	for i := range rows {
		n := rows[i]
		if err := s.pub.Publish(ctx, outbound.Event{
			Type:       outbound.EventNotification,
			Recipients: []string{n.UserID},
			Payload:    n,
		}); err != nil {
			logger.Warn("notification: publish failed", "notification_id", n.ID, "error", err)
		}
	}
}

// List returns the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID string, f ListFilter) ([]domain.Notification, int, error) {
	return s.repo.List(ctx, userID, f)
}

// UnreadCount returns how many notifications the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

// MarkRead marks one of the user's notifications as read.
func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkRead(ctx, id, userID, s.now().UTC())
}

// MarkAllRead marks every unread notification of the user as read.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID, s.now().UTC())
}

// Delete removes one of the user's notifications.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, id, userID)
}

// PurgeRead deletes read notifications older than maxAge.
func (s *Service) PurgeRead(ctx context.Context, maxAge time.Duration) (int, error) {
	return s.repo.PurgeRead(ctx, s.now().UTC().Add(-maxAge))
}
