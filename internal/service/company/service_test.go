package company

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/validate"
	"github.com/lapublica/platform/internal/service/outbound/outboundtest"
)

type memRepo struct {
	mu        sync.Mutex
	companies map[string]*domain.Company
}

func newMemRepo() *memRepo {
	return &memRepo{companies: make(map[string]*domain.Company)}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]domain.Company, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Company
	for _, c := range m.companies {
		if f.GestorID != "" && !c.ManagedBy(f.GestorID) {
			continue
		}
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) Create(_ context.Context, c *domain.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.companies {
		if existing.CIF == c.CIF {
			return ErrCIFTaken
		}
	}
	cp := *c
	m.companies[c.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, id string, u UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	return nil
}

func (m *memRepo) SetGestor(_ context.Context, id, gestorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return ErrNotFound
	}
	c.GestorID = &gestorID
	return nil
}

func (m *memRepo) SetStatus(_ context.Context, id string, status domain.CompanyStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *memRepo) SetLogo(_ context.Context, id, url, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return ErrNotFound
	}
	c.LogoURL, c.LogoKey = url, key
	return nil
}

type fakeUsers map[string]*domain.User

func (f fakeUsers) Get(_ context.Context, id string) (*domain.User, error) {
	if u, ok := f[id]; ok {
		return u, nil
	}
	return nil, errors.New("user not found")
}

type fakeImages struct {
	n           int
	invalidated []string
}

func (f *fakeImages) Upload(_ context.Context, prefix string, _ []byte) (domain.StoredImage, error) {
	f.n++
	key := prefix + "/logo-" + string(rune('0'+f.n)) + ".png"
	return domain.StoredImage{URL: "https://cdn/" + key, Key: key, ThumbURL: "https://cdn/" + key, ThumbKey: key}, nil
}

func (f *fakeImages) Invalidate(_ context.Context, keys ...string) error {
	f.invalidated = append(f.invalidated, keys...)
	return nil
}

var (
	admin  = domain.Actor{UserID: "admin", Role: domain.RoleAdmin}
	gestor = domain.Actor{UserID: "g1", Role: domain.RoleGestor}
)

type fixture struct {
	svc    *Service
	repo   *memRepo
	rec    *outboundtest.Recorder
	images *fakeImages
}

func newFixture() fixture {
	repo := newMemRepo()
	rec := outboundtest.New()
	images := &fakeImages{}
	users := fakeUsers{
		"g1":  {ID: "g1", Role: domain.RoleGestor, Active: true},
		"g2":  {ID: "g2", Role: domain.RoleGestor, Active: false},
		"emp": {ID: "emp", Role: domain.RoleEmployee, Active: true},
	}
	return fixture{NewService(repo, users, images, rec, rec), repo, rec, images}
}

func (f fixture) create(t *testing.T) *domain.Company {
	t.Helper()
	c, err := f.svc.Create(context.Background(), admin, CreateInput{
		Name: "Fusteria Vallès SL", CIF: "b-12345674", Email: "info@fusteriavalles.cat",
	})
	require.NoError(t, err)
	return c
}

func TestCreate(t *testing.T) {
	f := newFixture()
	c := f.create(t)
	assert.Equal(t, "B12345674", c.CIF)
	assert.Equal(t, domain.CompanyPending, c.Status)

	_, err := f.svc.Create(context.Background(), admin, CreateInput{Name: "Dup", CIF: "B12345674", Email: "a@b.cat"})
	assert.ErrorIs(t, err, ErrCIFTaken)

	_, err = f.svc.Create(context.Background(), admin, CreateInput{Name: "X", CIF: "B12345675", Email: "nope", Website: "ftp://x"})
	var fields validate.Errors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "cif")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "website")

	// personal NIF and NIE numbers are not company tax ids
	for _, id := range []string{"12345678Z", "X1234567L"} {
		_, err = f.svc.Create(context.Background(), admin, CreateInput{Name: "Autonom", CIF: id, Email: "a@autonom.cat"})
		fields = nil
		require.ErrorAs(t, err, &fields, id)
		assert.Contains(t, fields, "cif", id)
	}

	_, err = f.svc.Create(context.Background(), gestor, CreateInput{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAssignGestor(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.create(t)

	_, err := f.svc.AssignGestor(ctx, admin, c.ID, "g2")
	assert.ErrorIs(t, err, ErrNotGestor)
	_, err = f.svc.AssignGestor(ctx, admin, c.ID, "emp")
	assert.ErrorIs(t, err, ErrNotGestor)
	_, err = f.svc.AssignGestor(ctx, gestor, c.ID, "g1")
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.AssignGestor(ctx, admin, c.ID, "g1")
	require.NoError(t, err)
	assert.True(t, got.ManagedBy("g1"))

	notes := f.rec.NotesFor("g1")
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotifyCompanyAssigned, notes[0].Type)
	assert.Equal(t, []string{"gestor_assigned"}, f.rec.Actions())
}

func TestListScopesByRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	mine := f.create(t)
	_, err := f.svc.Create(ctx, admin, CreateInput{Name: "Altra SA", CIF: "A76543214", Email: "x@altra.cat"})
	require.NoError(t, err)
	_, err = f.svc.AssignGestor(ctx, admin, mine.ID, "g1")
	require.NoError(t, err)

	all, total, err := f.svc.List(ctx, admin, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, all, 2)

	portfolio, _, err := f.svc.List(ctx, gestor, ListFilter{})
	require.NoError(t, err)
	require.Len(t, portfolio, 1)
	assert.Equal(t, mine.ID, portfolio[0].ID)

	_, _, err = f.svc.List(ctx, domain.Actor{UserID: "e", Role: domain.RoleEmployee}, ListFilter{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdate_CompanyUserDescriptiveOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.create(t)
	owner := domain.Actor{UserID: "cu", Role: domain.RoleCompany, CompanyID: c.ID}

	desc := "Mobles a mida des de 1962"
	got, err := f.svc.Update(ctx, owner, c.ID, UpdateFields{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, got.Description)

	name := "Renamed"
	_, err = f.svc.Update(ctx, owner, c.ID, UpdateFields{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	other := domain.Actor{UserID: "x", Role: domain.RoleCompany, CompanyID: "other"}
	_, err = f.svc.Update(ctx, other, c.ID, UpdateFields{Description: &desc})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Update(ctx, gestor, c.ID, UpdateFields{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden, "gestor without the company in portfolio")
}

func TestSetStatus(t *testing.T) {
	f := newFixture()
	c := f.create(t)
	require.NoError(t, f.svc.SetStatus(context.Background(), admin, c.ID, domain.CompanyActive))
	assert.Equal(t, domain.CompanyActive, f.repo.companies[c.ID].Status)
	assert.ErrorIs(t, f.svc.SetStatus(context.Background(), admin, c.ID, "CLOSED"), ErrBadStatus)
}

func TestUploadLogo_InvalidatesPrevious(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	c := f.create(t)
	owner := domain.Actor{UserID: "cu", Role: domain.RoleCompany, CompanyID: c.ID}

	first, err := f.svc.UploadLogo(ctx, owner, c.ID, []byte("img"))
	require.NoError(t, err)
	assert.Empty(t, f.images.invalidated)

	second, err := f.svc.UploadLogo(ctx, owner, c.ID, []byte("img2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.LogoKey, second.LogoKey)
	assert.Equal(t, []string{first.LogoKey}, f.images.invalidated)

	_, err = f.svc.UploadLogo(ctx, domain.Actor{UserID: "e", Role: domain.RoleEmployee}, c.ID, []byte("x"))
	assert.ErrorIs(t, err, ErrForbidden)
}
