// Package outbound defines the side-effect ports services call after a
// state change: in-app notifications, email, audit and realtime events.
//
// Implementations live in notification/, mailer/, audit/ and realtime/.
// Services depend only on these interfaces so they stay testable with the
// fakes in outboundtest.
package outbound

import (
	"context"

	"github.com/lapublica/platform/internal/domain"
)

// Note is the content of an in-app notification.
type Note struct {
	Type     domain.NotificationType
	Title    string
	Body     string
	Link     string
	Priority domain.Priority
}

// Notifier creates in-app notifications. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Notify(ctx context.Context, userID string, n Note) error
	NotifyRole(ctx context.Context, role domain.Role, n Note) (int, error)
}

// Email template names.
const (
	TemplateWelcome           = "welcome"
	TemplateCouponIssued      = "coupon_issued"
	TemplateGroupOfferDecided = "group_offer_decided"
	TemplateTaskReminder      = "task_reminder"
)

// Email is a templated message addressed to one recipient.
type Email struct {
	To       string         `json:"to"`
	ToName   string         `json:"to_name,omitempty"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data"`
}

// Mailer delivers or enqueues an email. Callers treat errors as
// non-fatal: the triggering operation has already committed.
type Mailer interface {
	Enqueue(ctx context.Context, e Email) error
}

// Auditor appends to the audit trail. It never fails the caller.
type Auditor interface {
	Record(ctx context.Context, ev domain.AuditEvent)
}

// Event is a realtime message for a set of users.
type Event struct {
	Type       string   `json:"type"`
	Recipients []string `json:"recipients"`
	Payload    any      `json:"payload,omitempty"`
}

// Realtime event types.
const (
	EventNotification = "notification"
	EventMessage      = "message"
)

// Publisher broadcasts realtime events to connected clients.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop satisfies every port and discards everything.
type Nop struct{}

func (Nop) Notify(context.Context, string, Note) error                 { return nil }
func (Nop) NotifyRole(context.Context, domain.Role, Note) (int, error) { return 0, nil }
func (Nop) Enqueue(context.Context, Email) error                       { return nil }
func (Nop) Record(context.Context, domain.AuditEvent)                  {}
func (Nop) Publish(context.Context, Event) error                       { return nil }
