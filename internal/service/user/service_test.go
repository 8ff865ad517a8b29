package user

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/apperr"
	"github.com/lapublica/platform/internal/pkg/validate"
	"github.com/lapublica/platform/internal/service/outbound/outboundtest"
)

// memRepo is an in-memory user repository for unit testing.
type memRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]*domain.User)}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]domain.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.User
	for _, u := range m.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(u.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrEmailTaken
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, id string, f UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	if f.Name != nil {
		u.Name = *f.Name
	}
	if f.Email != nil {
		u.Email = *f.Email
	}
	if f.Role != nil {
		u.Role = *f.Role
	}
	if f.CompanyID != nil {
		if *f.CompanyID == "" {
			u.CompanyID = nil
		} else {
			cid := *f.CompanyID
			u.CompanyID = &cid
		}
	}
	if f.Phone != nil {
		u.Phone = *f.Phone
	}
	if f.City != nil {
		u.City = *f.City
	}
	if f.Bio != nil {
		u.Bio = *f.Bio
	}
	if f.BirthDate != nil {
		u.BirthDate = f.BirthDate
	}
	return nil
}

func (m *memRepo) UpdatePrivacy(_ context.Context, id string, p domain.PrivacySettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Privacy = p
	return nil
}

func (m *memRepo) SetActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Active = active
	return nil
}

func (m *memRepo) SetPasswordHash(_ context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memRepo) TouchLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.LastLoginAt = &at
	}
	return nil
}

var (
	admin = domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin}
	super = domain.Actor{UserID: "root", Role: domain.RoleSuperAdmin}
)

func newTestService() (*Service, *memRepo, *outboundtest.Recorder) {
	repo := newMemRepo()
	rec := outboundtest.New()
	return NewService(repo, rec, WithHashCost(bcrypt.MinCost)), repo, rec
}

func createEmployee(t *testing.T, svc *Service, email string) *domain.User {
	t.Helper()
	u, err := svc.Create(context.Background(), admin, CreateInput{
		Email: email, Password: "correct-horse", Name: "Jordi Puig", Role: domain.RoleEmployee,
	})
	require.NoError(t, err)
	return u
}

func TestCreate(t *testing.T) {
	svc, _, rec := newTestService()

	u := createEmployee(t, svc, "  Jordi.Puig@Gencat.cat ")
	assert.Equal(t, "jordi.puig@gencat.cat", u.Email)
	assert.True(t, u.Active)
	assert.Equal(t, domain.DefaultPrivacy(), u.Privacy)
	assert.NotEqual(t, "correct-horse", u.PasswordHash)

	require.Len(t, rec.Emails, 1)
	assert.Equal(t, "welcome", rec.Emails[0].Template)
	assert.Equal(t, "jordi.puig@gencat.cat", rec.Emails[0].To)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService()
	createEmployee(t, svc, "anna@bcn.cat")

	_, err := svc.Create(context.Background(), admin, CreateInput{
		Email: "ANNA@bcn.cat", Password: "another-pass", Name: "Anna", Role: domain.RoleEmployee,
	})
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestCreate_Validation(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), admin, CreateInput{
		Email: "not-an-email", Password: "short", Role: domain.RoleCompany,
	})
	var fields validate.Errors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "company_id")
}

func TestCreate_Permissions(t *testing.T) {
	svc, _, _ := newTestService()
	in := CreateInput{Email: "x@y.cat", Password: "long-enough", Name: "X", Role: domain.RoleEmployee}

	_, err := svc.Create(context.Background(), domain.Actor{UserID: "g", Role: domain.RoleGestor}, in)
	assert.ErrorIs(t, err, ErrForbidden)

	in.Role = domain.RoleSuperAdmin
	_, err = svc.Create(context.Background(), admin, in)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Create(context.Background(), super, in)
	assert.NoError(t, err)
}

func TestSetActive(t *testing.T) {
	svc, repo, _ := newTestService()
	u := createEmployee(t, svc, "pere@udg.cat")

	require.NoError(t, svc.SetActive(context.Background(), admin, u.ID, false))
	assert.False(t, repo.users[u.ID].Active)

	assert.ErrorIs(t, svc.SetActive(context.Background(), admin, admin.UserID, false), ErrSelfDeactivate)
	assert.ErrorIs(t, svc.SetActive(context.Background(), domain.Actor{UserID: u.ID, Role: domain.RoleEmployee}, u.ID, true), ErrForbidden)
}

func TestAuthenticate(t *testing.T) {
	svc, repo, _ := newTestService()
	u := createEmployee(t, svc, "laia@diba.cat")
	ctx := context.Background()

	got, err := svc.Authenticate(ctx, "LAIA@diba.cat", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.NotNil(t, repo.users[u.ID].LastLoginAt)

	_, err = svc.Authenticate(ctx, "laia@diba.cat", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)

	_, err = svc.Authenticate(ctx, "nobody@diba.cat", "correct-horse")
	assert.ErrorIs(t, err, ErrBadCredentials)

	require.NoError(t, svc.SetActive(ctx, admin, u.ID, false))
	_, err = svc.Authenticate(ctx, "laia@diba.cat", "correct-horse")
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestStaffByEmail(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	createEmployee(t, svc, "emp@lapublica.cat")
	_, err := svc.Create(ctx, admin, CreateInput{Email: "gestor@lapublica.cat", Password: "long-enough", Name: "Gestor", Role: domain.RoleGestor})
	require.NoError(t, err)

	_, err = svc.StaffByEmail(ctx, "emp@lapublica.cat")
	assert.ErrorIs(t, err, ErrForbidden)
	g, err := svc.StaffByEmail(ctx, "gestor@lapublica.cat")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleGestor, g.Role)
	_, err = svc.StaffByEmail(ctx, "ghost@lapublica.cat")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestChangePassword(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u := createEmployee(t, svc, "marta@tarragona.cat")
	self := u.Actor()

	assert.ErrorIs(t, svc.ChangePassword(ctx, self, "nope", "new-password-1"), ErrWrongPassword)

	var fields validate.Errors
	require.ErrorAs(t, svc.ChangePassword(ctx, self, "correct-horse", "short"), &fields)

	require.NoError(t, svc.ChangePassword(ctx, self, "correct-horse", "new-password-1"))
	_, err := svc.Authenticate(ctx, u.Email, "new-password-1")
	assert.NoError(t, err)
}

func TestProfile_PrivacyFiltering(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	u := createEmployee(t, svc, "oriol@lleida.cat")
	city := "Lleida"
	_, err := svc.UpdateProfile(ctx, u.Actor(), ProfileInput{City: &city})
	require.NoError(t, err)

	other := domain.Actor{UserID: "someone", Role: domain.RoleEmployee}
	p, err := svc.Profile(ctx, other, u.ID)
	require.NoError(t, err)
	assert.Nil(t, p.Email)
	assert.Nil(t, p.City)

	_, err = svc.UpdatePrivacy(ctx, u.Actor(), domain.PrivacySettings{ShowEmail: true, ShowCity: true})
	require.NoError(t, err)
	p, err = svc.Profile(ctx, other, u.ID)
	require.NoError(t, err)
	require.NotNil(t, p.City)
	assert.Equal(t, "Lleida", *p.City)
	assert.Equal(t, "oriol@lleida.cat", *p.Email)

	require.NoError(t, svc.SetActive(ctx, admin, u.ID, false))
	_, err = svc.Profile(ctx, other, u.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.Profile(ctx, admin, u.ID)
	assert.NoError(t, err)
}

func TestUpdate_CompanyRoleNeedsCompany(t *testing.T) {
	svc, _, _ := newTestService()
	u := createEmployee(t, svc, "nuria@girona.cat")

	role := domain.RoleCompany
	_, err := svc.Update(context.Background(), admin, u.ID, UpdateInput{Role: &role})
	var fields validate.Errors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "company_id")

	cid := "company-1"
	got, err := svc.Update(context.Background(), admin, u.ID, UpdateInput{Role: &role, CompanyID: &cid})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCompany, got.Role)
	assert.Equal(t, "company-1", *got.CompanyID)
}

func TestSuperAdminOnlyManagedBySuperAdmin(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	root, err := svc.Create(ctx, super, CreateInput{
		Email: "root@lapublica.cat", Password: "long-enough", Name: "Root", Role: domain.RoleSuperAdmin,
	})
	require.NoError(t, err)

	email := "other@lapublica.cat"
	_, err = svc.Update(ctx, admin, root.ID, UpdateInput{Email: &email})
	assert.ErrorIs(t, err, ErrForbidden)
	name := "Renamed"
	_, err = svc.Update(ctx, admin, root.ID, UpdateInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, "root@lapublica.cat", repo.users[root.ID].Email)

	assert.ErrorIs(t, svc.SetActive(ctx, admin, root.ID, false), ErrForbidden)
	assert.True(t, repo.users[root.ID].Active)

	got, err := svc.Update(ctx, super, root.ID, UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	require.NoError(t, svc.SetActive(ctx, domain.Actor{UserID: "root-2", Role: domain.RoleSuperAdmin}, root.ID, false))
	assert.False(t, repo.users[root.ID].Active)

	// admins still cannot promote
	u := createEmployee(t, svc, "puja@lapublica.cat")
	role := domain.RoleSuperAdmin
	_, err = svc.Update(ctx, admin, u.ID, UpdateInput{Role: &role})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestPasswordTooLongForBcrypt(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	long := strings.Repeat("x", MaxPasswordBytes+1)

	_, err := svc.Create(ctx, admin, CreateInput{
		Email: "llarg@lapublica.cat", Password: long, Name: "Llarg", Role: domain.RoleEmployee,
	})
	var fields validate.Errors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "password")

	// 25 three-byte runes: few characters, too many bytes
	accented := strings.Repeat("€", 25)
	u := createEmployee(t, svc, "curt@lapublica.cat")
	err = svc.ChangePassword(ctx, u.Actor(), "correct-horse", accented)
	fields = nil
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "new_password")

	require.NoError(t, svc.ChangePassword(ctx, u.Actor(), "correct-horse", strings.Repeat("y", MaxPasswordBytes)))
}

func TestUpdate_LeavingCompanyRoleClearsCompany(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	u, err := svc.Create(ctx, admin, CreateInput{
		Email: "botiga@lapublica.cat", Password: "long-enough", Name: "Botiga", Role: domain.RoleCompany, CompanyID: "company-1",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.users[u.ID].CompanyID)

	role := domain.RoleEmployee
	got, err := svc.Update(ctx, admin, u.ID, UpdateInput{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEmployee, got.Role)
	assert.Nil(t, got.CompanyID)
}

func TestUnknownEmailUsesConfiguredCost(t *testing.T) {
	svc, _, _ := newTestService()
	cost, err := bcrypt.Cost(svc.dummyHash())
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)

	svc = NewService(newMemRepo(), outboundtest.New(), WithHashCost(bcrypt.MinCost+2))
	cost, err = bcrypt.Cost(svc.dummyHash())
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+2, cost)
}
