package realtime

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lapublica/platform/internal/service/outbound"
)

// maxNotifyBytes stays under Postgres' 8000-byte NOTIFY payload limit.
const maxNotifyBytes = 7900

// PGPublisher implements outbound.Publisher through lp_publish.
type PGPublisher struct {
	db *sql.DB
}

// NewPGPublisher creates a publisher on db.
func NewPGPublisher(db *sql.DB) *PGPublisher {
	return &PGPublisher{db: db}
}

// Publish sends ev to every API process. Oversized payloads are dropped and
// clients refetch on the bare event type.
func (p *PGPublisher) Publish(ctx context.Context, ev outbound.Event) error {
	if len(ev.Recipients) == 0 {
		return nil
	}
	body, err := encode(ev)
	if err != nil {
		return err
	}
	if _, err := p.db.ExecContext(ctx, `SELECT lp_publish($1::jsonb)`, string(body)); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func encode(ev outbound.Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	if len(body) > maxNotifyBytes {
		ev.Payload = nil
		if body, err = json.Marshal(ev); err != nil {
			return nil, fmt.Errorf("encode event: %w", err)
		}
	}
	return body, nil
}

// LocalPublisher delivers straight into a hub in this process.
type LocalPublisher struct {
	Hub *Hub
}

func (p LocalPublisher) Publish(_ context.Context, ev outbound.Event) error {
	p.Hub.Deliver(ev)
	return nil
}
