// Package postgres implements the service repositories on PostgreSQL with
// database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/lapublica/platform/internal/pkg/apperr"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

var errMissingReference = apperr.Invalid("referenced record does not exist")

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpen, maxIdle int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// uniqueViolation reports the constraint name when err is a 23505.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return pqErr.Constraint, true
	}
	return "", false
}

func foreignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23503"
}

// writeErr wraps a failed insert or update, surfacing FK violations as
// invalid input.
func writeErr(op string, err error) error {
	if foreignKeyViolation(err) {
		return errMissingReference
	}
	return fmt.Errorf("%s: %w", op, err)
}

// affected returns notFound when res touched no rows.
func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func pageLimit(n int) int {
	switch {
	case n <= 0:
		return defaultLimit
	case n > maxLimit:
		return maxLimit
	}
	return n
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

// add appends cond, replacing each ? with the next placeholder.
func (w *where) add(cond string, vals ...any) {
	for _, v := range vals {
		w.args = append(w.args, v)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// next returns the placeholder for an extra argument appended after the
// conditions.
func (w *where) next(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

// updates builds the SET clause of a partial update.
type updates struct {
	sets []string
	args []any
}

func (u *updates) add(col string, val any) {
	u.args = append(u.args, val)
	u.sets = append(u.sets, fmt.Sprintf("%s = $%d", col, len(u.args)))
}

func (u *updates) empty() bool { return len(u.sets) == 0 }

// exec runs UPDATE table SET ... , updated_at = NOW() WHERE id = $n.
func (u *updates) exec(ctx context.Context, db *sql.DB, table, id string, notFound error) error {
	u.args = append(u.args, id)
	q := fmt.Sprintf("UPDATE %s SET %s, updated_at = NOW() WHERE id = $%d",
		table, strings.Join(u.sets, ", "), len(u.args))
	res, err := db.ExecContext(ctx, q, u.args...)
	if err != nil {
		return err
	}
	return affected(res, notFound)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(s)) + "%"
}

// inTx runs fn in a transaction, committing on nil error.
func inTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
