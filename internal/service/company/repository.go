package company

import (
	"context"

	"github.com/lapublica/platform/internal/domain"
)

// Repository defines the data access contract for companies.
type Repository interface {
	// Get returns a company. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Company, error)

	// List returns companies matching the filter ordered by name.
	List(ctx context.Context, f ListFilter) ([]domain.Company, int, error)

	// Create inserts c. Returns ErrCIFTaken on a duplicate CIF.
	Create(ctx context.Context, c *domain.Company) error

	// Update applies the non-nil fields.
	Update(ctx context.Context, id string, u UpdateFields) error

	SetGestor(ctx context.Context, id, gestorID string) error
	SetStatus(ctx context.Context, id string, status domain.CompanyStatus) error
	SetLogo(ctx context.Context, id, url, key string) error
}

// Users resolves user accounts for gestor assignment.
type Users interface {
	Get(ctx context.Context, id string) (*domain.User, error)
}

// Images stores uploaded images and purges stale CDN paths.
type Images interface {
	Upload(ctx context.Context, prefix string, data []byte) (domain.StoredImage, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// ListFilter controls pagination and filtering for company lists.
type ListFilter struct {
	Status   domain.CompanyStatus
	GestorID string
	Search   string
	Limit    int
	Offset   int
}

// UpdateFields holds the mutable fields for a company update.
// Nil fields are not applied.
type UpdateFields struct {
	Name        *string `json:"name"`
	CIF         *string `json:"cif"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Website     *string `json:"website"`
	Description *string `json:"description"`
	Sector      *string `json:"sector"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	NewsFeedURL *string `json:"news_feed_url"`
}

// identityChange reports whether u touches fields only staff may edit.
func (u UpdateFields) identityChange() bool {
	return u.Name != nil || u.CIF != nil || u.Email != nil
}
