package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/notification"
)

// NotificationRepo implements notification.Repository against PostgreSQL.
type NotificationRepo struct{ db *sql.DB }

// NewNotificationRepo creates a Postgres-backed notification repository.
func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

const notificationColumns = `id, user_id, type, title, body, link, priority, read_at, created_at`

func scanNotification(s rowScanner) (domain.Notification, error) {
	var (
		n      domain.Notification
		readAt sql.NullTime
	)
	err := s.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Link, &n.Priority, &readAt, &n.CreatedAt)
	n.ReadAt = timePtr(readAt)
	return n, err
}

func (r *NotificationRepo) Insert(ctx context.Context, n *domain.Notification) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, link, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.UserID, n.Type, n.Title, n.Body, n.Link, n.Priority, n.CreatedAt)
	if err != nil {
		return writeErr("insert notification", err)
	}
	return nil
}

func (r *NotificationRepo) InsertForRole(ctx context.Context, role domain.Role, tmpl domain.Notification) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, body, link, priority, created_at)
		SELECT gen_random_uuid(), u.id, $2, $3, $4, $5, $6, $7
		FROM users u
		WHERE u.role = $1 AND u.active
		RETURNING `+notificationColumns,
		role, tmpl.Type, tmpl.Title, tmpl.Body, tmpl.Link, tmpl.Priority, tmpl.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert role notifications: %w", err)
	}
	defer rows.Close()
	return collectNotifications(rows)
}

func collectNotifications(rows *sql.Rows) ([]domain.Notification, error) {
	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r *NotificationRepo) List(ctx context.Context, userID string, f notification.ListFilter) ([]domain.Notification, int, error) {
	var w where
	w.add("user_id = ?", userID)
	if f.UnreadOnly {
		w.add("read_at IS NULL")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	q := `SELECT ` + notificationColumns + ` FROM notifications` + w.sql()
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %s OFFSET %s", w.next(pageLimit(f.Limit)), w.next(f.Offset))
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	out, err := collectNotifications(rows)
	return out, total, err
}

func (r *NotificationRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read_at IS NULL`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unread notifications: %w", err)
	}
	return n, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = COALESCE(read_at, $1)
		WHERE id = $2 AND user_id = $3
	`, at, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return affected(res, notification.ErrNotFound)
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string, at time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET read_at = $1 WHERE user_id = $2 AND read_at IS NULL`, at, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *NotificationRepo) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return affected(res, notification.ErrNotFound)
}

func (r *NotificationRepo) PurgeRead(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE read_at IS NOT NULL AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
