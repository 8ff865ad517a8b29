package lead

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
)

// Repository defines the data access contract for leads and their tasks.
type Repository interface {
	Create(ctx context.Context, l *domain.Lead) error
	Get(ctx context.Context, id string) (*domain.Lead, error)
	List(ctx context.Context, f ListFilter) ([]domain.Lead, int, error)
	Update(ctx context.Context, id string, u UpdateFields) error
	Delete(ctx context.Context, id string) error

	// SetStage moves the lead from -> next. Returns ErrInvalidTransition if
	// the stored stage is no longer from.
	SetStage(ctx context.Context, id string, from, next domain.LeadStage, lostReason string, at time.Time) error

	SetGestor(ctx context.Context, id, gestorID string) error

	// Convert inserts c and links it to the lead in one transaction.
	// Returns ErrAlreadyConverted if the lead already has a company.
	Convert(ctx context.Context, leadID string, c *domain.Company) error

	// Pipeline aggregates leads per stage; gestorID "" means all gestors.
	Pipeline(ctx context.Context, gestorID string) ([]domain.StageSummary, error)

	CreateTask(ctx context.Context, t *domain.LeadTask) error
	GetTask(ctx context.Context, id string) (*domain.LeadTask, error)
	ListTasks(ctx context.Context, leadID string) ([]domain.LeadTask, error)

	// TasksFor returns assigneeID's pending tasks ordered by due date,
	// optionally limited to those due before dueBefore.
	TasksFor(ctx context.Context, assigneeID string, dueBefore *time.Time) ([]domain.LeadTask, error)

	// CompleteTask marks a PENDING task DONE. Returns ErrTaskDone otherwise.
	CompleteTask(ctx context.Context, id string, at time.Time) error
	DeleteTask(ctx context.Context, id string) error

	// DueForReminder returns pending, unreminded tasks due at or before until.
	DueForReminder(ctx context.Context, until time.Time) ([]domain.LeadTask, error)

	// MarkReminded sets reminded_at if still unset and reports whether
	// this call set it.
	MarkReminded(ctx context.Context, id string, at time.Time) (bool, error)
}

// Users resolves gestors and task assignees.
type Users interface {
	Get(ctx context.Context, id string) (*domain.User, error)
}

// ListFilter controls pagination and filtering for lead lists.
type ListFilter struct {
	GestorID string
	Stage    domain.LeadStage
	Search   string
	Limit    int
	Offset   int
}

// UpdateFields holds optional lead fields. Nil means unchanged.
type UpdateFields struct {
	CompanyName         *string `json:"company_name"`
	CIF                 *string `json:"cif"`
	ContactName         *string `json:"contact_name"`
	ContactEmail        *string `json:"contact_email"`
	ContactPhone        *string `json:"contact_phone"`
	Sector              *string `json:"sector"`
	Source              *string `json:"source"`
	Notes               *string `json:"notes"`
	EstimatedValueCents *int64  `json:"estimated_value_cents"`
}
