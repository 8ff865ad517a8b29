package notification

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
)

// Repository defines the data access contract for notifications.
type Repository interface {
	Insert(ctx context.Context, n *domain.Notification) error

	// InsertForRole copies tmpl to every active user with role in one
	// statement and returns the created rows.
	InsertForRole(ctx context.Context, role domain.Role, tmpl domain.Notification) ([]domain.Notification, error)

	List(ctx context.Context, userID string, f ListFilter) ([]domain.Notification, int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)

	// MarkRead sets read_at on a notification owned by userID. Returns
	// ErrNotFound when there is no such row for that user.
	MarkRead(ctx context.Context, id, userID string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error)
	Delete(ctx context.Context, id, userID string) error

	// PurgeRead deletes read notifications created before cutoff.
	PurgeRead(ctx context.Context, cutoff time.Time) (int, error)
}

// ListFilter controls pagination for notification lists.
type ListFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}
