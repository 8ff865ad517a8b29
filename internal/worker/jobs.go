package worker

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/config"
)

type couponExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

type taskReminder interface {
	RemindDueTasks(ctx context.Context) (int, error)
}

type feedImporter interface {
	ImportFeeds(ctx context.Context) (int, error)
}

type notificationPurger interface {
	PurgeRead(ctx context.Context, maxAge time.Duration) (int, error)
}

// Deps are the services the periodic jobs drive.
type Deps struct {
	Coupons       couponExpirer
	Tasks         taskReminder
	Content       feedImporter
	Notifications notificationPurger
}

// Jobs returns the platform's periodic jobs with schedules from cfg.
func Jobs(cfg config.WorkerConfig, d Deps) []Job {
	maxAge := time.Duration(cfg.NotificationMaxAge) * 24 * time.Hour
	return []Job{
		{Name: "coupon_expiry", Schedule: cfg.CouponExpiry, Run: d.Coupons.ExpireDue},
		{Name: "task_reminders", Schedule: cfg.TaskReminders, Run: d.Tasks.RemindDueTasks},
		{Name: "feed_import", Schedule: cfg.FeedImport, Run: d.Content.ImportFeeds},
		{Name: "notification_purge", Schedule: cfg.NotificationPurge, Run: func(ctx context.Context) (int, error) {
			return d.Notifications.PurgeRead(ctx, maxAge)
		}},
	}
}
