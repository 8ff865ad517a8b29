// Package outboundtest provides an in-memory implementation of the
// outbound ports for service tests.
package outboundtest

import (
	"context"
	"sync"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/outbound"
)

// Sent is a notification captured by Recorder.
type Sent struct {
	UserID string
	Role   domain.Role
	Note   outbound.Note
}

// Recorder captures every outbound call.
type Recorder struct {
	mu       sync.Mutex
	Notes    []Sent
	Emails   []outbound.Email
	Audits   []domain.AuditEvent
	Events   []outbound.Event
	RoleSize int // count returned by NotifyRole
}

func New() *Recorder { return &Recorder{} }

func (r *Recorder) Notify(_ context.Context, userID string, n outbound.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notes = append(r.Notes, Sent{UserID: userID, Note: n})
	return nil
}

func (r *Recorder) NotifyRole(_ context.Context, role domain.Role, n outbound.Note) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notes = append(r.Notes, Sent{Role: role, Note: n})
	return r.RoleSize, nil
}

func (r *Recorder) Enqueue(_ context.Context, e outbound.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Emails = append(r.Emails, e)
	return nil
}

func (r *Recorder) Record(_ context.Context, ev domain.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Audits = append(r.Audits, ev)
}

func (r *Recorder) Publish(_ context.Context, ev outbound.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, ev)
	return nil
}

// NotesFor returns notifications sent to userID.
func (r *Recorder) NotesFor(userID string) []outbound.Note {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []outbound.Note
	for _, s := range r.Notes {
		if s.UserID == userID {
			out = append(out, s.Note)
		}
	}
	return out
}

// Actions returns the audit actions in order.
func (r *Recorder) Actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.Audits))
	for i, a := range r.Audits {
		out[i] = a.Action
	}
	return out
}
