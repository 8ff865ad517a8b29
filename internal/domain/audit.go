package domain

import "time"

// AuditEvent is one entry in the append-only audit trail.
type AuditEvent struct {
	ID       string            `json:"id"`
	Entity   string            `json:"entity"`
	EntityID string            `json:"entity_id"`
	Action   string            `json:"action"`
	ActorID  string            `json:"actor_id"`
	Details  map[string]string `json:"details,omitempty"`
	At       time.Time         `json:"at"`
}

// Audited entity names.
const (
	EntityLead       = "lead"
	EntityCompany    = "company"
	EntityGroupOffer = "group_offer"
	EntityContent    = "content"
	EntityUser       = "user"
)
