package user

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
)

// Repository defines the data access contract for users.
type Repository interface {
	// Get returns a user by id. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail looks up a user by lower-cased email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// List returns users matching the filter ordered by name.
	List(ctx context.Context, f ListFilter) ([]domain.User, int, error)

	// Create inserts u. Returns ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, u *domain.User) error

	// Update applies the non-nil fields.
	Update(ctx context.Context, id string, u UpdateFields) error

	// UpdatePrivacy replaces the privacy flags.
	UpdatePrivacy(ctx context.Context, id string, p domain.PrivacySettings) error

	SetActive(ctx context.Context, id string, active bool) error
	SetPasswordHash(ctx context.Context, id, hash string) error
	TouchLogin(ctx context.Context, id string, at time.Time) error
}

// ListFilter controls pagination and filtering for user lists.
type ListFilter struct {
	Role   domain.Role
	Search string
	Active *bool
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields for a user update.
// Nil fields are not applied.
type UpdateFields struct {
	Name           *string
	Email          *string
	Role           *domain.Role
	CompanyID      *string
	Phone          *string
	Department     *string
	Administration *string
	City           *string
	Bio            *string
	AvatarURL      *string
	BirthDate      *time.Time
}
