package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/groupoffer"
)

// GroupOfferRepo implements groupoffer.Repository against PostgreSQL.
type GroupOfferRepo struct{ db *sql.DB }

// NewGroupOfferRepo creates a Postgres-backed group offer repository.
func NewGroupOfferRepo(db *sql.DB) *GroupOfferRepo { return &GroupOfferRepo{db: db} }

const groupOfferSelect = `
	SELECT g.id, g.company_id, c.name, g.requested_by, g.gestor_id, g.title, g.description,
	       g.target_audience, g.estimated_participants, g.proposed_discount, g.status,
	       g.review_notes, g.reviewed_by, g.reviewed_at, g.created_at, g.updated_at
	FROM group_offer_requests g
	JOIN companies c ON c.id = g.company_id`

func scanGroupOffer(s rowScanner) (*domain.GroupOfferRequest, error) {
	var (
		g          domain.GroupOfferRequest
		gestorID   sql.NullString
		reviewedBy sql.NullString
		reviewedAt sql.NullTime
	)
	if err := s.Scan(&g.ID, &g.CompanyID, &g.CompanyName, &g.RequestedBy, &gestorID, &g.Title,
		&g.Description, &g.TargetAudience, &g.EstimatedParticipants, &g.ProposedDiscount, &g.Status,
		&g.ReviewNotes, &reviewedBy, &reviewedAt, &g.CreatedAt, &g.UpdatedAt); err != nil {
		return nil, err
	}
	g.GestorID = strPtr(gestorID)
	g.ReviewedBy = strPtr(reviewedBy)
	g.ReviewedAt = timePtr(reviewedAt)
	return &g, nil
}

func (r *GroupOfferRepo) Create(ctx context.Context, g *domain.GroupOfferRequest) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO group_offer_requests (id, company_id, requested_by, gestor_id, title, description,
			target_audience, estimated_participants, proposed_discount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, g.ID, g.CompanyID, g.RequestedBy, nullStringPtr(g.GestorID), g.Title, g.Description,
		g.TargetAudience, g.EstimatedParticipants, g.ProposedDiscount, g.Status, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return writeErr("insert group offer", err)
	}
	return nil
}

func (r *GroupOfferRepo) Get(ctx context.Context, id string) (*domain.GroupOfferRequest, error) {
	g, err := scanGroupOffer(r.db.QueryRowContext(ctx, groupOfferSelect+` WHERE g.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, groupoffer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group offer: %w", err)
	}
	return g, nil
}

func (r *GroupOfferRepo) List(ctx context.Context, f groupoffer.ListFilter) ([]domain.GroupOfferRequest, int, error) {
	var w where
	if f.CompanyID != "" {
		w.add("g.company_id = ?", f.CompanyID)
	}
	if f.GestorID != "" {
		w.add("g.gestor_id = ?", f.GestorID)
	}
	if f.Status != "" {
		w.add("g.status = ?", f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM group_offer_requests g`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count group offers: %w", err)
	}

	q := groupOfferSelect + w.sql()
	q += fmt.Sprintf(" ORDER BY g.created_at DESC LIMIT %s OFFSET %s", w.next(pageLimit(f.Limit)), w.next(f.Offset))
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list group offers: %w", err)
	}
	defer rows.Close()

	var out []domain.GroupOfferRequest
	for rows.Next() {
		g, err := scanGroupOffer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan group offer: %w", err)
		}
		out = append(out, *g)
	}
	return out, total, rows.Err()
}

func (r *GroupOfferRepo) Transition(ctx context.Context, id string, from []domain.GroupOfferStatus, next domain.GroupOfferStatus, rv groupoffer.Review) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	var reviewedAt sql.NullTime
	if rv.ReviewedBy != "" {
		reviewedAt = sql.NullTime{Time: rv.ReviewedAt, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE group_offer_requests
		SET status = $1,
		    review_notes = CASE WHEN $2 <> '' THEN $2 ELSE review_notes END,
		    reviewed_by = COALESCE($3, reviewed_by),
		    reviewed_at = COALESCE($4, reviewed_at),
		    updated_at = NOW()
		WHERE id = $5 AND status = ANY($6)
	`, next, rv.Notes, nullString(rv.ReviewedBy), reviewedAt, id, pq.Array(states))
	if err != nil {
		return fmt.Errorf("transition group offer: %w", err)
	}
	return affected(res, groupoffer.ErrInvalidTransition)
}

func (r *GroupOfferRepo) SetGestor(ctx context.Context, id, gestorID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE group_offer_requests SET gestor_id = $1, updated_at = NOW() WHERE id = $2
	`, gestorID, id)
	if err != nil {
		return writeErr("reassign group offer", err)
	}
	return affected(res, groupoffer.ErrNotFound)
}
