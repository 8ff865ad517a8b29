package domain

import "time"

// LeadStage is a step in the sales pipeline.
type LeadStage string

const (
	StageNew         LeadStage = "NEW"
	StageContacted   LeadStage = "CONTACTED"
	StageQualified   LeadStage = "QUALIFIED"
	StageProposal    LeadStage = "PROPOSAL"
	StageNegotiation LeadStage = "NEGOTIATION"
	StageWon         LeadStage = "WON"
	StageLost        LeadStage = "LOST"
)

// PipelineOrder lists stages in display order.
var PipelineOrder = []LeadStage{
	StageNew, StageContacted, StageQualified, StageProposal, StageNegotiation, StageWon, StageLost,
}

func (s LeadStage) index() int {
	for i, v := range PipelineOrder[:6] {
		if v == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known stage.
func (s LeadStage) Valid() bool {
	return s == StageLost || s.index() >= 0
}

// Open is true for every stage except WON and LOST.
func (s LeadStage) Open() bool {
	return s.Valid() && s != StageWon && s != StageLost
}

// CanTransitionTo reports whether a lead may move from s to next. Leads
// move forward through the pipeline; any open stage may be lost; a lost
// lead may be reopened; WON is final.
func (s LeadStage) CanTransitionTo(next LeadStage) bool {
	if !s.Valid() || !next.Valid() || s == next {
		return false
	}
	switch {
	case s == StageWon:
		return false
	case s == StageLost:
		return next == StageNew
	case next == StageLost:
		return true
	}
	return next.index() > s.index()
}

// Lead is a prospective company tracked by a gestor.
type Lead struct {
	ID                  string    `json:"id"`
	CompanyName         string    `json:"company_name"`
	CIF                 string    `json:"cif,omitempty"`
	ContactName         string    `json:"contact_name,omitempty"`
	ContactEmail        string    `json:"contact_email,omitempty"`
	ContactPhone        string    `json:"contact_phone,omitempty"`
	Sector              string    `json:"sector,omitempty"`
	Source              string    `json:"source,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	EstimatedValueCents int64     `json:"estimated_value_cents"`
	Stage               LeadStage `json:"stage"`
	LostReason          string    `json:"lost_reason,omitempty"`
	GestorID            string    `json:"gestor_id"`
	ConvertedCompanyID  *string   `json:"converted_company_id,omitempty"`
	CreatedBy           string    `json:"created_by"`
	StageChangedAt      time.Time `json:"stage_changed_at"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// TaskStatus is the completion state of a lead task.
type TaskStatus string

const (
	TaskPending TaskStatus = "PENDING"
	TaskDone    TaskStatus = "DONE"
)

// LeadTask is a follow-up action on a lead.
type LeadTask struct {
	ID          string     `json:"id"`
	LeadID      string     `json:"lead_id"`
	LeadName    string     `json:"lead_name,omitempty"`
	AssigneeID  string     `json:"assignee_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueAt       time.Time  `json:"due_at"`
	Priority    Priority   `json:"priority"`
	Status      TaskStatus `json:"status"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RemindedAt  *time.Time `json:"reminded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// StageSummary aggregates leads in one pipeline stage.
type StageSummary struct {
	Stage      LeadStage `json:"stage"`
	Count      int       `json:"count"`
	ValueCents int64     `json:"value_cents"`
}
