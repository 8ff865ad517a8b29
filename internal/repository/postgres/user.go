package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/user"
)

// UserRepo implements user.Repository against PostgreSQL.
type UserRepo struct{ db *sql.DB }

// NewUserRepo creates a Postgres-backed user repository.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userColumns = `id, email, password_hash, name, role, company_id, phone, department,
	administration, city, bio, avatar_url, birth_date, privacy, active, last_login_at,
	created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*domain.User, error) {
	var (
		u       domain.User
		company sql.NullString
		birth   sql.NullTime
		login   sql.NullTime
		privacy []byte
	)
	if err := s.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &u.Role, &company, &u.Phone,
		&u.Department, &u.Administration, &u.City, &u.Bio, &u.AvatarURL, &birth, &privacy,
		&u.Active, &login, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.CompanyID = strPtr(company)
	u.BirthDate = timePtr(birth)
	u.LastLoginAt = timePtr(login)
	u.Privacy = domain.DefaultPrivacy()
	if len(privacy) > 0 {
		if err := json.Unmarshal(privacy, &u.Privacy); err != nil {
			return nil, fmt.Errorf("decode privacy: %w", err)
		}
	}
	return &u, nil
}

func (r *UserRepo) getBy(ctx context.Context, col string, val any) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+col+` = $1`, val)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) Get(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getBy(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *UserRepo) List(ctx context.Context, f user.ListFilter) ([]domain.User, int, error) {
	var w where
	if f.Role != "" {
		w.add("role = ?", f.Role)
	}
	if f.Active != nil {
		w.add("active = ?", *f.Active)
	}
	if f.Search != "" {
		w.add("(name ILIKE ? OR email ILIKE ?)", likePattern(f.Search), likePattern(f.Search))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	q := `SELECT ` + userColumns + ` FROM users` + w.sql()
	q += fmt.Sprintf(" ORDER BY name LIMIT %s OFFSET %s", w.next(pageLimit(f.Limit)), w.next(f.Offset))
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, total, rows.Err()
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	privacy, err := json.Marshal(u.Privacy)
	if err != nil {
		return fmt.Errorf("encode privacy: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users
			(id, email, password_hash, name, role, company_id, phone, department,
			 administration, city, bio, avatar_url, birth_date, privacy, active,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
	`, u.ID, u.Email, u.PasswordHash, u.Name, u.Role, nullStringPtr(u.CompanyID), u.Phone,
		u.Department, u.Administration, u.City, u.Bio, u.AvatarURL, u.BirthDate, privacy,
		u.Active, u.CreatedAt)
	if _, ok := uniqueViolation(err); ok {
		return user.ErrEmailTaken
	}
	if err != nil {
		return writeErr("create user", err)
	}
	return nil
}

func (r *UserRepo) Update(ctx context.Context, id string, f user.UpdateFields) error {
	var u updates
	if f.Name != nil {
		u.add("name", *f.Name)
	}
	if f.Email != nil {
		u.add("email", strings.ToLower(*f.Email))
	}
	if f.Role != nil {
		u.add("role", *f.Role)
	}
	if f.CompanyID != nil {
		u.add("company_id", nullStringPtr(f.CompanyID))
	}
	if f.Phone != nil {
		u.add("phone", *f.Phone)
	}
	if f.Department != nil {
		u.add("department", *f.Department)
	}
	if f.Administration != nil {
		u.add("administration", *f.Administration)
	}
	if f.City != nil {
		u.add("city", *f.City)
	}
	if f.Bio != nil {
		u.add("bio", *f.Bio)
	}
	if f.AvatarURL != nil {
		u.add("avatar_url", *f.AvatarURL)
	}
	if f.BirthDate != nil {
		u.add("birth_date", *f.BirthDate)
	}
	if u.empty() {
		return nil
	}
	err := u.exec(ctx, r.db, "users", id, user.ErrNotFound)
	if _, ok := uniqueViolation(err); ok {
		return user.ErrEmailTaken
	}
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return writeErr("update user", err)
	}
	return err
}

func (r *UserRepo) UpdatePrivacy(ctx context.Context, id string, p domain.PrivacySettings) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode privacy: %w", err)
	}
	return r.exec(ctx, "update privacy", `UPDATE users SET privacy = $1, updated_at = NOW() WHERE id = $2`, b, id)
}

func (r *UserRepo) SetActive(ctx context.Context, id string, active bool) error {
	return r.exec(ctx, "set active", `UPDATE users SET active = $1, updated_at = NOW() WHERE id = $2`, active, id)
}

func (r *UserRepo) SetPasswordHash(ctx context.Context, id, hash string) error {
	return r.exec(ctx, "set password", `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2`, hash, id)
}

func (r *UserRepo) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "touch login", `UPDATE users SET last_login_at = $1 WHERE id = $2`, at, id)
}

func (r *UserRepo) exec(ctx context.Context, op, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return affected(res, user.ErrNotFound)
}
