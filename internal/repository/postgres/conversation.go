package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/conversation"
)

// ConversationRepo implements conversation.Repository against PostgreSQL.
type ConversationRepo struct{ db *sql.DB }

// NewConversationRepo creates a Postgres-backed conversation repository.
func NewConversationRepo(db *sql.DB) *ConversationRepo { return &ConversationRepo{db: db} }

// unreadExpr counts messages from others newer than the participant's
// read mark. Expects aliases c (conversations) and p (participants).
const unreadExpr = `(
	SELECT COUNT(*) FROM messages m
	WHERE m.conversation_id = c.id AND m.sender_id <> p.user_id
	  AND m.created_at > COALESCE(p.last_read_at, '-infinity'::timestamptz))`

const conversationSelect = `
	SELECT c.id, c.subject, c.direct_key IS NOT NULL, c.created_by, c.last_message_at, c.created_at,
	       p.archived, ` + unreadExpr + `,
	       lm.sender_id, lm.body, lm.created_at
	FROM conversations c
	JOIN conversation_participants p ON p.conversation_id = c.id AND p.user_id = $1
	LEFT JOIN LATERAL (
		SELECT sender_id, body, created_at FROM messages
		WHERE conversation_id = c.id ORDER BY created_at DESC LIMIT 1
	) lm ON TRUE`

func scanConversation(s rowScanner) (*domain.Conversation, error) {
	var (
		c        domain.Conversation
		lmSender sql.NullString
		lmBody   sql.NullString
		lmAt     sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.Subject, &c.IsDirect, &c.CreatedBy, &c.LastMessageAt, &c.CreatedAt,
		&c.Archived, &c.UnreadCount, &lmSender, &lmBody, &lmAt); err != nil {
		return nil, err
	}
	if lmSender.Valid {
		c.LastMessage = &domain.MessagePreview{
			SenderID:  lmSender.String,
			Body:      domain.Preview(lmBody.String),
			CreatedAt: lmAt.Time,
		}
	}
	return &c, nil
}

func (r *ConversationRepo) FindDirect(ctx context.Context, directKey string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := r.db.QueryRowContext(ctx, `
		SELECT id, subject, created_by, last_message_at, created_at
		FROM conversations WHERE direct_key = $1
	`, directKey).Scan(&c.ID, &c.Subject, &c.CreatedBy, &c.LastMessageAt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}
	c.IsDirect = true
	return &c, nil
}

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation, participantIDs []string, directKey string, first *domain.Message) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, subject, direct_key, created_by, last_message_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, c.ID, c.Subject, nullString(directKey), c.CreatedBy, c.LastMessageAt, c.CreatedAt)
		if _, ok := uniqueViolation(err); ok {
			return conversation.ErrDirectExists
		}
		if err != nil {
			return writeErr("insert conversation", err)
		}

		for _, id := range participantIDs {
			var lastRead sql.NullTime
			if id == first.SenderID {
				lastRead = sql.NullTime{Time: first.CreatedAt, Valid: true}
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO conversation_participants (conversation_id, user_id, last_read_at, joined_at)
				VALUES ($1, $2, $3, $4)
			`, c.ID, id, lastRead, c.CreatedAt); err != nil {
				return writeErr("insert participant", err)
			}
		}
		return insertMessage(ctx, tx, first)
	})
}

func insertMessage(ctx context.Context, tx *sql.Tx, m *domain.Message) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.ConversationID, m.SenderID, m.Body, m.CreatedAt)
	if err != nil {
		return writeErr("insert message", err)
	}
	return nil
}

func (r *ConversationRepo) Append(ctx context.Context, m *domain.Message) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE conversations SET last_message_at = GREATEST(last_message_at, $1) WHERE id = $2
		`, m.CreatedAt, m.ConversationID)
		if err != nil {
			return fmt.Errorf("bump conversation: %w", err)
		}
		if err := affected(res, conversation.ErrNotFound); err != nil {
			return err
		}
		if err := insertMessage(ctx, tx, m); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE conversation_participants
			SET archived = FALSE,
			    last_read_at = CASE WHEN user_id = $2 THEN $3 ELSE last_read_at END
			WHERE conversation_id = $1
		`, m.ConversationID, m.SenderID, m.CreatedAt)
		if err != nil {
			return fmt.Errorf("update participants: %w", err)
		}
		return nil
	})
}

func (r *ConversationRepo) Get(ctx context.Context, id, userID string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, conversationSelect+` WHERE c.id = $2`, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conversation.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if c.Participants, err = r.Participants(ctx, id); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ConversationRepo) Participants(ctx context.Context, id string) ([]domain.Participant, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.user_id, u.name, u.role, p.last_read_at, p.archived, p.joined_at
		FROM conversation_participants p
		JOIN users u ON u.id = p.user_id
		WHERE p.conversation_id = $1
		ORDER BY p.joined_at, u.name
	`, id)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var (
			p        domain.Participant
			lastRead sql.NullTime
		)
		if err := rows.Scan(&p.UserID, &p.Name, &p.Role, &lastRead, &p.Archived, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		p.LastReadAt = timePtr(lastRead)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, conversation.ErrNotFound
	}
	return out, nil
}

func (r *ConversationRepo) List(ctx context.Context, userID string, f conversation.ListFilter) ([]domain.Conversation, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversation_participants WHERE user_id = $1 AND archived = $2
	`, userID, f.Archived).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, conversationSelect+`
		WHERE p.archived = $2
		ORDER BY c.last_message_at DESC
		LIMIT $3 OFFSET $4
	`, userID, f.Archived, pageLimit(f.Limit), f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *ConversationRepo) Messages(ctx context.Context, id string, before *conversation.Cursor, limit int) ([]domain.Message, error) {
	var w where
	w.add("m.conversation_id = ?", id)
	switch {
	case before == nil:
	case before.ID == "":
		w.add("m.created_at < ?", before.At)
	default:
		w.add("(m.created_at, m.id) < (?, ?)", before.At, before.ID)
	}
	q := `SELECT m.id, m.conversation_id, m.sender_id, u.name, m.body, m.created_at
		FROM messages m JOIN users u ON u.id = m.sender_id` + w.sql()
	q += fmt.Sprintf(" ORDER BY m.created_at DESC, m.id DESC LIMIT %s", w.next(limit))

	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.SenderName, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *ConversationRepo) MarkRead(ctx context.Context, id, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants
		SET last_read_at = GREATEST(COALESCE(last_read_at, $3), $3)
		WHERE conversation_id = $1 AND user_id = $2
	`, id, userID, at)
	if err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	return affected(res, conversation.ErrNotFound)
}

func (r *ConversationRepo) SetArchived(ctx context.Context, id, userID string, archived bool) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversation_participants SET archived = $3
		WHERE conversation_id = $1 AND user_id = $2
	`, id, userID, archived)
	if err != nil {
		return fmt.Errorf("archive conversation: %w", err)
	}
	return affected(res, conversation.ErrNotFound)
}

func (r *ConversationRepo) UnreadTotal(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(`+unreadExpr+`), 0)
		FROM conversation_participants p
		JOIN conversations c ON c.id = p.conversation_id
		WHERE p.user_id = $1 AND NOT p.archived
	`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unread messages: %w", err)
	}
	return n, nil
}
