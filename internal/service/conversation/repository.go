package conversation

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
)

// Repository defines the data access contract for conversations.
type Repository interface {
	// FindDirect returns the direct conversation with the given key.
	// Returns ErrNotFound if there is none.
	FindDirect(ctx context.Context, directKey string) (*domain.Conversation, error)

	// Create inserts c with its participants and first message in one
	// transaction. directKey is empty for group conversations.
	Create(ctx context.Context, c *domain.Conversation, participantIDs []string, directKey string, first *domain.Message) error

	// Append inserts m, bumps last_message_at, marks the sender read up to
	// m.CreatedAt and clears the archived flag of every participant.
	Append(ctx context.Context, m *domain.Message) error

	// Get returns a conversation as seen by userID, with participants.
	// Returns ErrNotFound when userID is not a participant.
	Get(ctx context.Context, id, userID string) (*domain.Conversation, error)

	// Participants returns the participant list of a conversation.
	Participants(ctx context.Context, id string) ([]domain.Participant, error)

	// List returns userID's conversations ordered by last_message_at desc,
	// with last message preview and unread count.
	List(ctx context.Context, userID string, f ListFilter) ([]domain.Conversation, int, error)

	// Messages returns up to limit messages positioned before the cursor
	// (or the newest when before is nil), newest first.
	Messages(ctx context.Context, id string, before *Cursor, limit int) ([]domain.Message, error)

	MarkRead(ctx context.Context, id, userID string, at time.Time) error
	SetArchived(ctx context.Context, id, userID string, archived bool) error
	UnreadTotal(ctx context.Context, userID string) (int, error)
}

// Users resolves participants.
type Users interface {
	Get(ctx context.Context, id string) (*domain.User, error)
}

// ListFilter controls pagination for conversation lists.
type ListFilter struct {
	Archived bool
	Limit    int
	Offset   int
}

// Cursor is the position of the oldest message already seen. Messages are
// ordered by (created_at, id), so equal timestamps page without gaps. An
// empty ID compares on At alone.
type Cursor struct {
	At time.Time
	ID string
}

// Before reports whether m sorts strictly before the cursor.
func (c Cursor) Before(m domain.Message) bool {
	if c.ID == "" || !m.CreatedAt.Equal(c.At) {
		return m.CreatedAt.Before(c.At)
	}
	return m.ID < c.ID
}
