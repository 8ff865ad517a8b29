package mailer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lapublica/platform/internal/metrics"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/service/outbound"
)

// Mailer implements outbound.Mailer. With a queue it only enqueues;
// otherwise it sends inline in a goroutine bounded by the send timeout.
type Mailer struct {
	renderer *Renderer
	sender   Sender
	queue    *Queue
	timeout  time.Duration
	wg       sync.WaitGroup
}

// Option configures a Mailer.
type Option func(*Mailer)

// WithQueue routes Enqueue through SQS.
func WithQueue(q *Queue) Option { return func(m *Mailer) { m.queue = q } }

// WithTimeout bounds one inline delivery.
func WithTimeout(d time.Duration) Option { return func(m *Mailer) { m.timeout = d } }

// New creates a Mailer.
func New(r *Renderer, s Sender, opts ...Option) *Mailer {
	m := &Mailer{renderer: r, sender: s, timeout: 15 * time.Second}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Enqueue validates e and hands it to the queue or an inline sender.
func (m *Mailer) Enqueue(ctx context.Context, e outbound.Email) error {
	if e.To == "" {
		return errors.New("email has no recipient")
	}
	if !m.renderer.Has(e.Template) {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, e.Template)
	}
	if m.queue != nil {
		return m.queue.Push(ctx, e)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()
		if err := m.Deliver(ctx, e); err != nil {
			logger.Warn("mailer: inline send failed", "to", e.To, "template", e.Template, "error", err)
		}
	}()
	return nil
}

// Deliver renders and sends e synchronously.
func (m *Mailer) Deliver(ctx context.Context, e outbound.Email) error {
	subject, html, err := m.renderer.Render(e.Template, e.Data)
	if err != nil {
		metrics.EmailsSent.WithLabelValues(e.Template, "render_error").Inc()
		return err
	}
	id, err := m.sender.Send(ctx, Message{To: e.To, ToName: e.ToName, Subject: subject, HTML: html, Template: e.Template})
	if err != nil {
		metrics.EmailsSent.WithLabelValues(e.Template, "failed").Inc()
		return err
	}
	metrics.EmailsSent.WithLabelValues(e.Template, "sent").Inc()
	logger.Debug("mailer: sent", "to", e.To, "template", e.Template, "message_id", id)
	return nil
}

// Wait blocks until inline sends started so far have finished.
func (m *Mailer) Wait() { m.wg.Wait() }
