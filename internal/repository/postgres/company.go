package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/company"
)

// CompanyRepo implements company.Repository against PostgreSQL.
type CompanyRepo struct{ db *sql.DB }

// NewCompanyRepo creates a Postgres-backed company repository.
func NewCompanyRepo(db *sql.DB) *CompanyRepo { return &CompanyRepo{db: db} }

const companyColumns = `id, name, cif, email, phone, website, description, sector, address, city,
	logo_url, logo_key, news_feed_url, status, gestor_id, plan_id, plan_started_at,
	plan_renews_at, created_at, updated_at`

func scanCompany(s rowScanner) (*domain.Company, error) {
	var (
		c                domain.Company
		gestor, plan     sql.NullString
		started, renewal sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.Name, &c.CIF, &c.Email, &c.Phone, &c.Website, &c.Description,
		&c.Sector, &c.Address, &c.City, &c.LogoURL, &c.LogoKey, &c.NewsFeedURL, &c.Status,
		&gestor, &plan, &started, &renewal, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.GestorID = strPtr(gestor)
	c.PlanID = strPtr(plan)
	c.PlanStartedAt = timePtr(started)
	c.PlanRenewsAt = timePtr(renewal)
	return &c, nil
}

func getCompany(ctx context.Context, db *sql.DB, id string, notFound error) (*domain.Company, error) {
	c, err := scanCompany(db.QueryRowContext(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

func (r *CompanyRepo) Get(ctx context.Context, id string) (*domain.Company, error) {
	return getCompany(ctx, r.db, id, company.ErrNotFound)
}

func (r *CompanyRepo) List(ctx context.Context, f company.ListFilter) ([]domain.Company, int, error) {
	var w where
	if f.Status != "" {
		w.add("status = ?", f.Status)
	}
	if f.GestorID != "" {
		w.add("gestor_id = ?", f.GestorID)
	}
	if f.Search != "" {
		w.add("(name ILIKE ? OR cif ILIKE ? OR city ILIKE ?)", likePattern(f.Search), likePattern(f.Search), likePattern(f.Search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM companies`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count companies: %w", err)
	}

	q := `SELECT ` + companyColumns + ` FROM companies` + w.sql()
	q += fmt.Sprintf(" ORDER BY name LIMIT %s OFFSET %s", w.next(pageLimit(f.Limit)), w.next(f.Offset))
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var out []domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan company: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

const insertCompanySQL = `
	INSERT INTO companies
		(id, name, cif, email, phone, website, description, sector, address, city,
		 news_feed_url, status, gestor_id, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCompany(ctx context.Context, db execer, c *domain.Company) error {
	_, err := db.ExecContext(ctx, insertCompanySQL,
		c.ID, c.Name, c.CIF, c.Email, c.Phone, c.Website, c.Description, c.Sector, c.Address,
		c.City, c.NewsFeedURL, c.Status, nullStringPtr(c.GestorID), c.CreatedAt)
	if _, ok := uniqueViolation(err); ok {
		return company.ErrCIFTaken
	}
	if err != nil {
		return writeErr("create company", err)
	}
	return nil
}

func (r *CompanyRepo) Create(ctx context.Context, c *domain.Company) error {
	return insertCompany(ctx, r.db, c)
}

func (r *CompanyRepo) Update(ctx context.Context, id string, f company.UpdateFields) error {
	var u updates
	for _, kv := range []struct {
		col string
		val *string
	}{
		{"name", f.Name}, {"cif", f.CIF}, {"email", f.Email}, {"phone", f.Phone},
		{"website", f.Website}, {"description", f.Description}, {"sector", f.Sector},
		{"address", f.Address}, {"city", f.City}, {"news_feed_url", f.NewsFeedURL},
	} {
		if kv.val != nil {
			u.add(kv.col, *kv.val)
		}
	}
	if u.empty() {
		return nil
	}
	err := u.exec(ctx, r.db, "companies", id, company.ErrNotFound)
	if _, ok := uniqueViolation(err); ok {
		return company.ErrCIFTaken
	}
	if err != nil && !errors.Is(err, company.ErrNotFound) {
		return fmt.Errorf("update company: %w", err)
	}
	return err
}

func (r *CompanyRepo) SetGestor(ctx context.Context, id, gestorID string) error {
	return r.exec(ctx, "set gestor", `UPDATE companies SET gestor_id = $1, updated_at = NOW() WHERE id = $2`, gestorID, id)
}

func (r *CompanyRepo) SetStatus(ctx context.Context, id string, status domain.CompanyStatus) error {
	return r.exec(ctx, "set status", `UPDATE companies SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
}

func (r *CompanyRepo) SetLogo(ctx context.Context, id, url, key string) error {
	return r.exec(ctx, "set logo", `UPDATE companies SET logo_url = $1, logo_key = $2, updated_at = NOW() WHERE id = $3`, url, key, id)
}

func (r *CompanyRepo) exec(ctx context.Context, op, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return writeErr(op, err)
	}
	return affected(res, company.ErrNotFound)
}
