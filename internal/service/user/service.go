package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/pkg/validate"
	"github.com/lapublica/platform/internal/service/outbound"
)

const (
	// MinPasswordLength is the shortest password accepted, in characters.
	MinPasswordLength = 8
	// MaxPasswordBytes is bcrypt's input limit.
	MaxPasswordBytes = 72
)

// Service implements user business logic. It is safe for concurrent use.
type Service struct {
	repo     Repository
	mailer   outbound.Mailer
	hashCost int
	now      func() time.Time

	dummyOnce sync.Once
	dummy     []byte
}

// Option configures a Service.
type Option func(*Service)

// WithHashCost overrides the bcrypt cost (tests use bcrypt.MinCost).
func WithHashCost(cost int) Option {
	return func(s *Service) { s.hashCost = cost }
}

// NewService creates a user service backed by the given repository.
func NewService(repo Repository, mailer outbound.Mailer, opts ...Option) *Service {
	s := &Service{repo: repo, mailer: mailer, hashCost: bcrypt.DefaultCost, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateInput holds the fields for creating a user.
type CreateInput struct {
	Email          string      `json:"email"`
	Password       string      `json:"password"`
	Name           string      `json:"name"`
	Role           domain.Role `json:"role"`
	CompanyID      string      `json:"company_id"`
	Phone          string      `json:"phone"`
	Department     string      `json:"department"`
	Administration string      `json:"administration"`
	City           string      `json:"city"`
}

// Create registers a new account and sends the welcome email.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	if in.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return nil, ErrForbidden
	}

	in.Email = normalizeEmail(in.Email)
	v := validate.Errors{}
	v.Email("email", in.Email)
	v.Required("name", in.Name)
	checkPassword(v, "password", in.Password)
	v.Phone("phone", in.Phone)
	if !in.Role.Valid() {
		v.Add("role", "must be one of SUPER_ADMIN, ADMIN, GESTOR, COMPANY, EMPLOYEE")
	}
	if in.Role == domain.RoleCompany && in.CompanyID == "" {
		v.Add("company_id", "is required for company users")
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	u := &domain.User{
		ID:             uuid.New().String(),
		Email:          in.Email,
		PasswordHash:   string(hash),
		Name:           strings.TrimSpace(in.Name),
		Role:           in.Role,
		Phone:          in.Phone,
		Department:     in.Department,
		Administration: in.Administration,
		City:           in.City,
		Privacy:        domain.DefaultPrivacy(),
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if in.Role == domain.RoleCompany {
		cid := in.CompanyID
		u.CompanyID = &cid
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	if err := s.mailer.Enqueue(ctx, outbound.Email{
		To:       u.Email,
		ToName:   u.Name,
		Template: outbound.TemplateWelcome,
		Data:     map[string]any{"name": u.Name, "role": string(u.Role)},
	}); err != nil {
		logger.Warn("user: welcome email failed", "user_id", u.ID, "error", err)
	}
	return u, nil
}

// Get returns a full user record. Admins may read anyone; others only themselves.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	if !actor.IsAdmin() && actor.UserID != id {
		return nil, ErrForbidden
	}
	return s.repo.Get(ctx, id)
}

// List returns users matching the filter. Admin only.
func (s *Service) List(ctx context.Context, actor domain.Actor, f ListFilter) ([]domain.User, int, error) {
	if !actor.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	return s.repo.List(ctx, f)
}

// UpdateInput holds admin-editable account fields.
type UpdateInput struct {
	Name      *string      `json:"name"`
	Email     *string      `json:"email"`
	Role      *domain.Role `json:"role"`
	CompanyID *string      `json:"company_id"`
}

// Update changes account fields. Admin only.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id string, in UpdateInput) (*domain.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return nil, ErrForbidden
	}

	v := validate.Errors{}
	if in.Name != nil {
		v.Required("name", *in.Name)
	}
	if in.Email != nil {
		e := normalizeEmail(*in.Email)
		in.Email = &e
		v.Email("email", e)
	}
	role := current.Role
	if in.Role != nil {
		role = *in.Role
		if !role.Valid() {
			v.Add("role", "is not a valid role")
		}
		if role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
			return nil, ErrForbidden
		}
	}
	hasCompany := current.CompanyID != nil
	if in.CompanyID != nil {
		hasCompany = *in.CompanyID != ""
	}
	if role == domain.RoleCompany && !hasCompany {
		v.Add("company_id", "is required for company users")
	}
	// only company users belong to a company
	if role != domain.RoleCompany && (hasCompany || in.CompanyID != nil) {
		none := ""
		in.CompanyID = &none
	}
	if err := v.Err(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, id, UpdateFields{
		Name:      in.Name,
		Email:     in.Email,
		Role:      in.Role,
		CompanyID: in.CompanyID,
	}); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// SetActive enables or disables an account. Admins cannot disable themselves.
func (s *Service) SetActive(ctx context.Context, actor domain.Actor, id string, active bool) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	if !active && actor.UserID == id {
		return ErrSelfDeactivate
	}
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return ErrForbidden
	}
	return s.repo.SetActive(ctx, id, active)
}

// ChangePassword replaces the actor's own password after checking the current one.
func (s *Service) ChangePassword(ctx context.Context, actor domain.Actor, current, next string) error {
	u, err := s.repo.Get(ctx, actor.UserID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return ErrWrongPassword
	}
	v := validate.Errors{}
	checkPassword(v, "new_password", next)
	if err := v.Err(); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.SetPasswordHash(ctx, u.ID, string(hash))
}

// Authenticate checks credentials for password login.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		// burn comparable time so unknown emails are not distinguishable
		_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(password))
		return nil, ErrBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrBadCredentials
	}
	if !u.Active {
		return nil, ErrAccountInactive
	}
	if err := s.repo.TouchLogin(ctx, u.ID, s.now().UTC()); err != nil {
		logger.Warn("user: touch login failed", "user_id", u.ID, "error", err)
	}
	return u, nil
}

// StaffByEmail resolves an SSO identity to an active staff account.
func (s *Service) StaffByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBadCredentials
		}
		return nil, err
	}
	if !u.Active {
		return nil, ErrAccountInactive
	}
	if !u.Role.IsStaff() {
		return nil, ErrForbidden
	}
	if err := s.repo.TouchLogin(ctx, u.ID, s.now().UTC()); err != nil {
		logger.Warn("user: touch login failed", "user_id", u.ID, "error", err)
	}
	return u, nil
}

// dummyHash is compared against for unknown emails. It uses the same cost
// as real hashes so both paths take as long.
func (s *Service) dummyHash() []byte {
	s.dummyOnce.Do(func() {
		h, err := bcrypt.GenerateFromPassword([]byte("no-such-account"), s.hashCost)
		if err != nil {
			logger.Error("user: dummy hash failed", "error", err)
			return
		}
		s.dummy = h
	})
	return s.dummy
}

// checkPassword applies the length rules for a new password.
func checkPassword(v validate.Errors, field, pw string) {
	if !v.Length(field, pw, MinPasswordLength, 0) {
		return
	}
	if len(pw) > MaxPasswordBytes {
		v.Add(field, "must be at most "+strconv.Itoa(MaxPasswordBytes)+" bytes")
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
