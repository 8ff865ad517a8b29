package offer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/validate"
)

// Service implements offer business logic. It is safe for concurrent use.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates an offer service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateInput holds the fields for a new offer.
type CreateInput struct {
	CompanyID          string     `json:"company_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	DiscountLabel      string     `json:"discount_label"`
	Category           string     `json:"category"`
	CouponValidityDays int        `json:"coupon_validity_days"`
	ExpiresAt          *time.Time `json:"expires_at"`
}

// Create publishes an offer for a company. Company users default to their
// own company.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Offer, error) {
	if in.CompanyID == "" && actor.Role == domain.RoleCompany {
		in.CompanyID = actor.CompanyID
	}
	if !actor.IsAdmin() && !actor.ActsForCompany(in.CompanyID) {
		return nil, ErrForbidden
	}
	if in.CouponValidityDays == 0 {
		in.CouponValidityDays = domain.DefaultCouponValidityDays
	}

	now := s.now().UTC()
	v := validate.Errors{}
	v.Required("company_id", in.CompanyID)
	s.check(v, &in.Title, &in.Description, &in.DiscountLabel, &in.CouponValidityDays, in.ExpiresAt, now)
	if err := v.Err(); err != nil {
		return nil, err
	}

	o := &domain.Offer{
		ID:                 uuid.New().String(),
		CompanyID:          in.CompanyID,
		Title:              in.Title,
		Description:        in.Description,
		DiscountLabel:      in.DiscountLabel,
		Category:           in.Category,
		CouponValidityDays: in.CouponValidityDays,
		ExpiresAt:          in.ExpiresAt,
		Active:             true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Service) check(v validate.Errors, title, desc, label *string, days *int, expires *time.Time, now time.Time) {
	if title != nil {
		v.Length("title", *title, 3, 200)
	}
	if desc != nil {
		v.Required("description", *desc)
	}
	if label != nil {
		v.Length("discount_label", *label, 1, 60)
	}
	if days != nil && (*days < 1 || *days > 365) {
		v.Add("coupon_validity_days", "must be between 1 and 365")
	}
	if expires != nil && !expires.After(now) {
		v.Add("expires_at", "must be in the future")
	}
}

// Get returns an offer. Employees only see public offers.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Offer, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.IsStaff() || actor.ActsForCompany(o.CompanyID) || o.Public(s.now()) {
		return o, nil
	}
	return nil, ErrNotFound
}

// List returns offers. Non-staff see public offers, plus every offer of
// their own company when filtering by it.
func (s *Service) List(ctx context.Context, actor domain.Actor, f ListFilter) ([]domain.Offer, int, error) {
	if !actor.IsStaff() && !(f.CompanyID != "" && actor.ActsForCompany(f.CompanyID)) {
		f.PublicOnly = true
	}
	return s.repo.List(ctx, f)
}

// Update edits an offer. Company users of the owner company or admins.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id string, u UpdateFields) (*domain.Offer, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.ActsForCompany(o.CompanyID) {
		return nil, ErrForbidden
	}
	v := validate.Errors{}
	s.check(v, u.Title, u.Description, u.DiscountLabel, u.CouponValidityDays, u.ExpiresAt, s.now())
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Deactivate withdraws an offer. Issued coupons stay valid until they expire.
func (s *Service) Deactivate(ctx context.Context, actor domain.Actor, id string) error {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && !actor.ActsForCompany(o.CompanyID) {
		return ErrForbidden
	}
	return s.repo.Deactivate(ctx, id)
}
