package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/offer"
)

// OfferRepo implements offer.Repository against PostgreSQL.
type OfferRepo struct{ db *sql.DB }

// NewOfferRepo creates a Postgres-backed offer repository.
func NewOfferRepo(db *sql.DB) *OfferRepo { return &OfferRepo{db: db} }

const offerSelect = `
	SELECT o.id, o.company_id, c.name, c.status, o.title, o.description, o.discount_label,
	       o.category, o.coupon_validity_days, o.expires_at, o.active, o.created_at, o.updated_at
	FROM offers o
	JOIN companies c ON c.id = o.company_id`

func scanOffer(s rowScanner) (*domain.Offer, error) {
	var (
		o       domain.Offer
		expires sql.NullTime
	)
	if err := s.Scan(&o.ID, &o.CompanyID, &o.CompanyName, &o.CompanyStatus, &o.Title,
		&o.Description, &o.DiscountLabel, &o.Category, &o.CouponValidityDays, &expires,
		&o.Active, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.ExpiresAt = timePtr(expires)
	return &o, nil
}

func getOffer(ctx context.Context, db *sql.DB, id string, notFound error) (*domain.Offer, error) {
	o, err := scanOffer(db.QueryRowContext(ctx, offerSelect+` WHERE o.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return o, nil
}

func (r *OfferRepo) Get(ctx context.Context, id string) (*domain.Offer, error) {
	return getOffer(ctx, r.db, id, offer.ErrNotFound)
}

func (r *OfferRepo) List(ctx context.Context, f offer.ListFilter) ([]domain.Offer, int, error) {
	var w where
	if f.CompanyID != "" {
		w.add("o.company_id = ?", f.CompanyID)
	}
	if f.Category != "" {
		w.add("o.category = ?", f.Category)
	}
	if f.Search != "" {
		w.add("(o.title ILIKE ? OR c.name ILIKE ?)", likePattern(f.Search), likePattern(f.Search))
	}
	if f.PublicOnly {
		w.add("o.active AND c.status = 'ACTIVE' AND (o.expires_at IS NULL OR o.expires_at > NOW())")
	}

	var total int
	countQ := `SELECT COUNT(*) FROM offers o JOIN companies c ON c.id = o.company_id` + w.sql()
	if err := r.db.QueryRowContext(ctx, countQ, w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count offers: %w", err)
	}

	q := offerSelect + w.sql()
	q += fmt.Sprintf(" ORDER BY o.created_at DESC LIMIT %s OFFSET %s", w.next(pageLimit(f.Limit)), w.next(f.Offset))
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list offers: %w", err)
	}
	defer rows.Close()

	var out []domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan offer: %w", err)
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

// Create locks the company row so concurrent creates cannot both pass the
// plan limit check.
func (r *OfferRepo) Create(ctx context.Context, o *domain.Offer) error {
	return inTx(ctx, r.db, func(tx *sql.Tx) error {
		var maxOffers sql.NullInt64
		err := tx.QueryRowContext(ctx, `
			SELECT p.max_offers
			FROM companies c
			LEFT JOIN plans p ON p.id = c.plan_id
			WHERE c.id = $1
			FOR UPDATE OF c
		`, o.CompanyID).Scan(&maxOffers)
		if errors.Is(err, sql.ErrNoRows) {
			return errMissingReference
		}
		if err != nil {
			return fmt.Errorf("lock company: %w", err)
		}

		var active int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM offers WHERE company_id = $1 AND active`, o.CompanyID,
		).Scan(&active); err != nil {
			return fmt.Errorf("count active offers: %w", err)
		}
		if !maxOffers.Valid || int64(active) >= maxOffers.Int64 {
			return offer.ErrOfferLimit
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO offers
				(id, company_id, title, description, discount_label, category,
				 coupon_validity_days, expires_at, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		`, o.ID, o.CompanyID, o.Title, o.Description, o.DiscountLabel, o.Category,
			o.CouponValidityDays, o.ExpiresAt, o.Active, o.CreatedAt)
		if err != nil {
			return writeErr("create offer", err)
		}
		return nil
	})
}

func (r *OfferRepo) Update(ctx context.Context, id string, f offer.UpdateFields) error {
	var u updates
	if f.Title != nil {
		u.add("title", *f.Title)
	}
	if f.Description != nil {
		u.add("description", *f.Description)
	}
	if f.DiscountLabel != nil {
		u.add("discount_label", *f.DiscountLabel)
	}
	if f.Category != nil {
		u.add("category", *f.Category)
	}
	if f.CouponValidityDays != nil {
		u.add("coupon_validity_days", *f.CouponValidityDays)
	}
	if f.ExpiresAt != nil {
		u.add("expires_at", *f.ExpiresAt)
	}
	if u.empty() {
		return nil
	}
	err := u.exec(ctx, r.db, "offers", id, offer.ErrNotFound)
	if err != nil && !errors.Is(err, offer.ErrNotFound) {
		return fmt.Errorf("update offer: %w", err)
	}
	return err
}

func (r *OfferRepo) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE offers SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate offer: %w", err)
	}
	return affected(res, offer.ErrNotFound)
}
