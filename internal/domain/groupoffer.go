package domain

import "time"

// GroupOfferStatus is the review state of a group offer request.
type GroupOfferStatus string

const (
	GroupOfferPending   GroupOfferStatus = "PENDING"
	GroupOfferInReview  GroupOfferStatus = "IN_REVIEW"
	GroupOfferApproved  GroupOfferStatus = "APPROVED"
	GroupOfferRejected  GroupOfferStatus = "REJECTED"
	GroupOfferCancelled GroupOfferStatus = "CANCELLED"
)

var groupOfferTransitions = map[GroupOfferStatus][]GroupOfferStatus{
	GroupOfferPending:  {GroupOfferInReview, GroupOfferApproved, GroupOfferRejected, GroupOfferCancelled},
	GroupOfferInReview: {GroupOfferApproved, GroupOfferRejected},
}

// CanTransitionTo reports whether s may move to next.
func (s GroupOfferStatus) CanTransitionTo(next GroupOfferStatus) bool {
	for _, v := range groupOfferTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s GroupOfferStatus) Terminal() bool {
	return len(groupOfferTransitions[s]) == 0
}

// GroupOfferRequest is a company's request for a negotiated bulk offer.
type GroupOfferRequest struct {
	ID                    string           `json:"id"`
	CompanyID             string           `json:"company_id"`
	CompanyName           string           `json:"company_name,omitempty"`
	RequestedBy           string           `json:"requested_by"`
	GestorID              *string          `json:"gestor_id,omitempty"`
	Title                 string           `json:"title"`
	Description           string           `json:"description"`
	TargetAudience        string           `json:"target_audience"`
	EstimatedParticipants int              `json:"estimated_participants"`
	ProposedDiscount      string           `json:"proposed_discount"`
	Status                GroupOfferStatus `json:"status"`
	ReviewNotes           string           `json:"review_notes,omitempty"`
	ReviewedBy            *string          `json:"reviewed_by,omitempty"`
	ReviewedAt            *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// AssignedTo reports whether gestorID handles the request.
func (g *GroupOfferRequest) AssignedTo(gestorID string) bool {
	return g.GestorID != nil && *g.GestorID == gestorID
}
