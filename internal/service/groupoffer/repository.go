package groupoffer

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
)

// Repository defines the data access contract for group offer requests.
type Repository interface {
	Create(ctx context.Context, g *domain.GroupOfferRequest) error
	Get(ctx context.Context, id string) (*domain.GroupOfferRequest, error)
	List(ctx context.Context, f ListFilter) ([]domain.GroupOfferRequest, int, error)

	// Transition moves the request to next only if its status is one of
	// from. Returns ErrInvalidTransition when no row matched.
	Transition(ctx context.Context, id string, from []domain.GroupOfferStatus, next domain.GroupOfferStatus, r Review) error

	SetGestor(ctx context.Context, id, gestorID string) error
}

// Review carries the reviewer fields written on a decision.
type Review struct {
	Notes      string
	ReviewedBy string
	ReviewedAt time.Time
}

// Companies resolves the requesting company.
type Companies interface {
	Get(ctx context.Context, id string) (*domain.Company, error)
}

// Users resolves requesters and gestors.
type Users interface {
	Get(ctx context.Context, id string) (*domain.User, error)
}

// ListFilter controls pagination and filtering for request lists.
type ListFilter struct {
	CompanyID string
	GestorID  string
	Status    domain.GroupOfferStatus
	Limit     int
	Offset    int
}
