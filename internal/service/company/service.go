package company

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/pkg/validate"
	"github.com/lapublica/platform/internal/service/outbound"
)

// Service implements company business logic. It is safe for concurrent use.
type Service struct {
	repo     Repository
	users    Users
	images   Images
	notifier outbound.Notifier
	audit    outbound.Auditor
	now      func() time.Time
}

// NewService creates a company service.
func NewService(repo Repository, users Users, images Images, notifier outbound.Notifier, audit outbound.Auditor) *Service {
	return &Service{repo: repo, users: users, images: images, notifier: notifier, audit: audit, now: time.Now}
}

// CreateInput holds the fields for registering a company.
type CreateInput struct {
	Name        string `json:"name"`
	CIF         string `json:"cif"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Website     string `json:"website"`
	Description string `json:"description"`
	Sector      string `json:"sector"`
	Address     string `json:"address"`
	City        string `json:"city"`
	NewsFeedURL string `json:"news_feed_url"`
}

// Create registers a company in PENDING status. Admin only.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Company, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	in.CIF = domain.NormalizeTaxID(in.CIF)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	v := validate.Errors{}
	v.Length("name", in.Name, 2, 200)
	if !domain.ValidCIF(in.CIF) {
		v.Add("cif", "must be a valid CIF")
	}
	v.Email("email", in.Email)
	v.Phone("phone", in.Phone)
	checkURL(v, "website", in.Website)
	checkURL(v, "news_feed_url", in.NewsFeedURL)
	if err := v.Err(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &domain.Company{
		ID:          uuid.New().String(),
		Name:        strings.TrimSpace(in.Name),
		CIF:         in.CIF,
		Email:       in.Email,
		Phone:       in.Phone,
		Website:     in.Website,
		Description: in.Description,
		Sector:      in.Sector,
		Address:     in.Address,
		City:        in.City,
		NewsFeedURL: in.NewsFeedURL,
		Status:      domain.CompanyPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns companies visible to actor: all for admins, the portfolio
// for gestors.
func (s *Service) List(ctx context.Context, actor domain.Actor, f ListFilter) ([]domain.Company, int, error) {
	switch {
	case actor.IsAdmin():
	case actor.IsGestor():
		f.GestorID = actor.UserID
	default:
		return nil, 0, ErrForbidden
	}
	return s.repo.List(ctx, f)
}

// Get returns a company to staff or to its own company users.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Company, error) {
	if !actor.IsStaff() && !actor.ActsForCompany(id) {
		return nil, ErrForbidden
	}
	return s.repo.Get(ctx, id)
}

// Update edits a company. Admins and the assigned gestor may change any
// field; the company's own users only descriptive ones.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id string, u UpdateFields) (*domain.Company, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin(), actor.IsGestor() && c.ManagedBy(actor.UserID):
	case actor.ActsForCompany(id) && !u.identityChange():
	default:
		return nil, ErrForbidden
	}

	v := validate.Errors{}
	if u.Name != nil {
		v.Length("name", *u.Name, 2, 200)
	}
	if u.CIF != nil {
		cif := domain.NormalizeTaxID(*u.CIF)
		u.CIF = &cif
		if !domain.ValidCIF(cif) {
			v.Add("cif", "must be a valid CIF")
		}
	}
	if u.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*u.Email))
		u.Email = &e
		v.Email("email", e)
	}
	if u.Phone != nil {
		v.Phone("phone", *u.Phone)
	}
	if u.Website != nil {
		checkURL(v, "website", *u.Website)
	}
	if u.NewsFeedURL != nil {
		checkURL(v, "news_feed_url", *u.NewsFeedURL)
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// AssignGestor moves a company into a gestor's portfolio. Admin only.
func (s *Service) AssignGestor(ctx context.Context, actor domain.Actor, id, gestorID string) (*domain.Company, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := s.users.Get(ctx, gestorID)
	if err != nil || g.Role != domain.RoleGestor || !g.Active {
		return nil, ErrNotGestor
	}
	if err := s.repo.SetGestor(ctx, id, gestorID); err != nil {
		return nil, err
	}

	previous := ""
	if c.GestorID != nil {
		previous = *c.GestorID
	}
	c.GestorID = &gestorID

	if err := s.notifier.Notify(ctx, gestorID, outbound.Note{
		Type:     domain.NotifyCompanyAssigned,
		Title:    "Nova empresa assignada: " + c.Name,
		Link:     "/companies/" + c.ID,
		Priority: domain.PriorityNormal,
	}); err != nil {
		logger.Warn("company: notify gestor failed", "company_id", id, "error", err)
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Entity:   domain.EntityCompany,
		EntityID: id,
		Action:   "gestor_assigned",
		ActorID:  actor.UserID,
		Details:  map[string]string{"gestor_id": gestorID, "previous_gestor_id": previous},
	})
	return c, nil
}

// SetStatus changes onboarding status. Admin only.
func (s *Service) SetStatus(ctx context.Context, actor domain.Actor, id string, status domain.CompanyStatus) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if !status.Valid() {
		return ErrBadStatus
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return err
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Entity:   domain.EntityCompany,
		EntityID: id,
		Action:   "status_changed",
		ActorID:  actor.UserID,
		Details:  map[string]string{"status": string(status)},
	})
	return nil
}

// UploadLogo stores a new logo and invalidates the previous one on the CDN.
func (s *Service) UploadLogo(ctx context.Context, actor domain.Actor, id string, data []byte) (*domain.Company, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.ActsForCompany(id) && !(actor.IsGestor() && c.ManagedBy(actor.UserID)) {
		return nil, ErrForbidden
	}
	if s.images == nil {
		return nil, errors.New("company: image storage not configured")
	}

	img, err := s.images.Upload(ctx, "logos/"+id, data)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetLogo(ctx, id, img.ThumbURL, img.ThumbKey); err != nil {
		return nil, err
	}
	if c.LogoKey != "" && c.LogoKey != img.ThumbKey {
		if err := s.images.Invalidate(ctx, c.LogoKey); err != nil {
			logger.Warn("company: cdn invalidation failed", "company_id", id, "error", err)
		}
	}
	c.LogoURL, c.LogoKey = img.ThumbURL, img.ThumbKey
	return c, nil
}

func checkURL(v validate.Errors, field, raw string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		v.Add(field, "must be an http(s) URL")
	}
}
