package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/lead"
)

// LeadRepo implements lead.Repository against PostgreSQL.
type LeadRepo struct{ db *sql.DB }

// NewLeadRepo creates a Postgres-backed lead repository.
func NewLeadRepo(db *sql.DB) *LeadRepo { return &LeadRepo{db: db} }

const leadColumns = `id, company_name, cif, contact_name, contact_email, contact_phone, sector, source,
	notes, estimated_value_cents, stage, lost_reason, gestor_id, converted_company_id, created_by,
	stage_changed_at, created_at, updated_at`

func scanLead(s rowScanner) (*domain.Lead, error) {
	var (
		l         domain.Lead
		converted sql.NullString
	)
	if err := s.Scan(&l.ID, &l.CompanyName, &l.CIF, &l.ContactName, &l.ContactEmail, &l.ContactPhone,
		&l.Sector, &l.Source, &l.Notes, &l.EstimatedValueCents, &l.Stage, &l.LostReason, &l.GestorID,
		&converted, &l.CreatedBy, &l.StageChangedAt, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.ConvertedCompanyID = strPtr(converted)
	return &l, nil
}

func (r *LeadRepo) Create(ctx context.Context, l *domain.Lead) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leads (`+leadColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULL, $14, $15, $16, $17)
	`, l.ID, l.CompanyName, l.CIF, l.ContactName, l.ContactEmail, l.ContactPhone, l.Sector, l.Source,
		l.Notes, l.EstimatedValueCents, l.Stage, l.LostReason, l.GestorID, l.CreatedBy,
		l.StageChangedAt, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return writeErr("insert lead", err)
	}
	return nil
}

func (r *LeadRepo) Get(ctx context.Context, id string) (*domain.Lead, error) {
	l, err := scanLead(r.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lead.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get lead: %w", err)
	}
	return l, nil
}

func (r *LeadRepo) List(ctx context.Context, f lead.ListFilter) ([]domain.Lead, int, error) {
	var w where
	if f.GestorID != "" {
		w.add("gestor_id = ?", f.GestorID)
	}
	if f.Stage != "" {
		w.add("stage = ?", f.Stage)
	}
	if f.Search != "" {
		p := likePattern(f.Search)
		w.add("(company_name ILIKE ? OR contact_name ILIKE ? OR contact_email ILIKE ?)", p, p, p)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	q := `SELECT ` + leadColumns + ` FROM leads` + w.sql()
	q += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %s OFFSET %s", w.next(pageLimit(f.Limit)), w.next(f.Offset))
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan lead: %w", err)
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

func (r *LeadRepo) Update(ctx context.Context, id string, f lead.UpdateFields) error {
	var u updates
	for _, kv := range []struct {
		col string
		val *string
	}{
		{"company_name", f.CompanyName}, {"cif", f.CIF}, {"contact_name", f.ContactName},
		{"contact_email", f.ContactEmail}, {"contact_phone", f.ContactPhone}, {"sector", f.Sector},
		{"source", f.Source}, {"notes", f.Notes},
	} {
		if kv.val != nil {
			u.add(kv.col, *kv.val)
		}
	}
	if f.EstimatedValueCents != nil {
		u.add("estimated_value_cents", *f.EstimatedValueCents)
	}
	if u.empty() {
		return nil
	}
	err := u.exec(ctx, r.db, "leads", id, lead.ErrNotFound)
	if err != nil && !errors.Is(err, lead.ErrNotFound) {
		return fmt.Errorf("update lead: %w", err)
	}
	return err
}

func (r *LeadRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete lead: %w", err)
	}
	return affected(res, lead.ErrNotFound)
}

func (r *LeadRepo) SetStage(ctx context.Context, id string, from, next domain.LeadStage, lostReason string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE leads
		SET stage = $1, lost_reason = $2, stage_changed_at = $3, updated_at = NOW()
		WHERE id = $4 AND stage = $5
	`, next, lostReason, at, id, from)
	if err != nil {
		return fmt.Errorf("set lead stage: %w", err)
	}
	return affected(res, lead.ErrInvalidTransition)
}

func (r *LeadRepo) SetGestor(ctx context.Context, id, gestorID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE leads SET gestor_id = $1, updated_at = NOW() WHERE id = $2`, gestorID, id)
	if err != nil {
		return writeErr("assign lead", err)
	}
	return affected(res, lead.ErrNotFound)
}

func (r *LeadRepo) Convert(ctx context.Context, leadID string, c *domain.Company) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := insertCompany(ctx, tx, c); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE leads SET converted_company_id = $1, updated_at = NOW()
			WHERE id = $2 AND converted_company_id IS NULL
		`, c.ID, leadID)
		if err != nil {
			return fmt.Errorf("link converted company: %w", err)
		}
		return affected(res, lead.ErrAlreadyConverted)
	})
}

func (r *LeadRepo) Pipeline(ctx context.Context, gestorID string) ([]domain.StageSummary, error) {
	var w where
	if gestorID != "" {
		w.add("gestor_id = ?", gestorID)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT stage, COUNT(*), COALESCE(SUM(estimated_value_cents), 0)
		FROM leads`+w.sql()+` GROUP BY stage`, w.args...)
	if err != nil {
		return nil, fmt.Errorf("lead pipeline: %w", err)
	}
	defer rows.Close()

	var out []domain.StageSummary
	for rows.Next() {
		var s domain.StageSummary
		if err := rows.Scan(&s.Stage, &s.Count, &s.ValueCents); err != nil {
			return nil, fmt.Errorf("scan stage summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const taskSelect = `
	SELECT t.id, t.lead_id, l.company_name, t.assignee_id, t.title, t.description, t.due_at,
	       t.priority, t.status, t.completed_at, t.reminded_at, t.created_at
	FROM lead_tasks t
	JOIN leads l ON l.id = t.lead_id`

func scanTask(s rowScanner) (*domain.LeadTask, error) {
	var (
		t         domain.LeadTask
		completed sql.NullTime
		reminded  sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.LeadID, &t.LeadName, &t.AssigneeID, &t.Title, &t.Description, &t.DueAt,
		&t.Priority, &t.Status, &completed, &reminded, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.CompletedAt = timePtr(completed)
	t.RemindedAt = timePtr(reminded)
	return &t, nil
}

func (r *LeadRepo) tasks(ctx context.Context, q string, args ...any) ([]domain.LeadTask, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.LeadTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *LeadRepo) CreateTask(ctx context.Context, t *domain.LeadTask) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lead_tasks (id, lead_id, assignee_id, title, description, due_at, priority, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, t.LeadID, t.AssigneeID, t.Title, t.Description, t.DueAt, t.Priority, t.Status, t.CreatedAt)
	if err != nil {
		return writeErr("insert task", err)
	}
	return nil
}

func (r *LeadRepo) GetTask(ctx context.Context, id string) (*domain.LeadTask, error) {
	t, err := scanTask(r.db.QueryRowContext(ctx, taskSelect+` WHERE t.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, lead.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (r *LeadRepo) ListTasks(ctx context.Context, leadID string) ([]domain.LeadTask, error) {
	return r.tasks(ctx, taskSelect+` WHERE t.lead_id = $1 ORDER BY t.status DESC, t.due_at`, leadID)
}

func (r *LeadRepo) TasksFor(ctx context.Context, assigneeID string, dueBefore *time.Time) ([]domain.LeadTask, error) {
	var w where
	w.add("t.assignee_id = ?", assigneeID)
	w.add("t.status = 'PENDING'")
	if dueBefore != nil {
		w.add("t.due_at < ?", *dueBefore)
	}
	return r.tasks(ctx, taskSelect+w.sql()+` ORDER BY t.due_at`, w.args...)
}

func (r *LeadRepo) CompleteTask(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lead_tasks SET status = 'DONE', completed_at = $1
		WHERE id = $2 AND status = 'PENDING'
	`, at, id)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return affected(res, lead.ErrTaskDone)
}

func (r *LeadRepo) DeleteTask(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM lead_tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return affected(res, lead.ErrTaskNotFound)
}

func (r *LeadRepo) DueForReminder(ctx context.Context, until time.Time) ([]domain.LeadTask, error) {
	return r.tasks(ctx, taskSelect+`
		WHERE t.status = 'PENDING' AND t.reminded_at IS NULL AND t.due_at <= $1
		ORDER BY t.due_at`, until)
}

func (r *LeadRepo) MarkReminded(ctx context.Context, id string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE lead_tasks SET reminded_at = $1 WHERE id = $2 AND reminded_at IS NULL`, at, id)
	if err != nil {
		return false, fmt.Errorf("mark task reminded: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}
