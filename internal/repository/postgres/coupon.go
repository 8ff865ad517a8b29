package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/coupon"
)

// CouponRepo implements coupon.Repository against PostgreSQL.
type CouponRepo struct{ db *sql.DB }

// NewCouponRepo creates a Postgres-backed coupon repository.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

const couponSelect = `
	SELECT cp.id, cp.code, cp.offer_id, o.title, cp.user_id, cp.company_id, cp.status,
	       cp.expires_at, cp.redeemed_at, cp.redeemed_by, cp.created_at
	FROM coupons cp
	JOIN offers o ON o.id = cp.offer_id`

func scanCoupon(s rowScanner) (*domain.Coupon, error) {
	var (
		c          domain.Coupon
		redeemedAt sql.NullTime
		redeemedBy sql.NullString
	)
	if err := s.Scan(&c.ID, &c.Code, &c.OfferID, &c.OfferTitle, &c.UserID, &c.CompanyID,
		&c.Status, &c.ExpiresAt, &redeemedAt, &redeemedBy, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.RedeemedAt = timePtr(redeemedAt)
	c.RedeemedBy = strPtr(redeemedBy)
	return &c, nil
}

func (r *CouponRepo) one(ctx context.Context, cond string, arg any) (*domain.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx, couponSelect+` WHERE `+cond, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coupon.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return c, nil
}

func (r *CouponRepo) Offer(ctx context.Context, offerID string) (*domain.Offer, error) {
	return getOffer(ctx, r.db, offerID, coupon.ErrOfferNotFound)
}

func (r *CouponRepo) ActiveFor(ctx context.Context, offerID, userID string) (*domain.Coupon, error) {
	c, err := scanCoupon(r.db.QueryRowContext(ctx,
		couponSelect+` WHERE cp.offer_id = $1 AND cp.user_id = $2 AND cp.status = 'ACTIVE'`, offerID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, coupon.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("active coupon: %w", err)
	}
	return c, nil
}

func (r *CouponRepo) Insert(ctx context.Context, c *domain.Coupon) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO coupons (id, code, offer_id, user_id, company_id, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Code, c.OfferID, c.UserID, c.CompanyID, c.Status, c.ExpiresAt, c.CreatedAt)
	if constraint, ok := uniqueViolation(err); ok {
		if constraint == "coupons_code_key" {
			return coupon.ErrCodeTaken
		}
		return coupon.ErrDuplicateActive
	}
	if err != nil {
		return writeErr("insert coupon", err)
	}
	return nil
}

func (r *CouponRepo) Get(ctx context.Context, id string) (*domain.Coupon, error) {
	return r.one(ctx, `cp.id = $1`, id)
}

func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return r.one(ctx, `cp.code = $1`, code)
}

func (r *CouponRepo) List(ctx context.Context, f coupon.ListFilter) ([]domain.Coupon, int, error) {
	var w where
	if f.UserID != "" {
		w.add("cp.user_id = ?", f.UserID)
	}
	if f.CompanyID != "" {
		w.add("cp.company_id = ?", f.CompanyID)
	}
	if f.Status != "" {
		w.add("cp.status = ?", f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM coupons cp`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}

	q := couponSelect + w.sql()
	q += fmt.Sprintf(" ORDER BY cp.created_at DESC LIMIT %s OFFSET %s", w.next(pageLimit(f.Limit)), w.next(f.Offset))
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list coupons: %w", err)
	}
	defer rows.Close()

	var out []domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan coupon: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CouponRepo) Redeem(ctx context.Context, id, by string, now time.Time) (*domain.Coupon, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE coupons
		SET status = 'REDEEMED', redeemed_at = $1, redeemed_by = $2
		WHERE id = $3 AND status = 'ACTIVE' AND expires_at > $1
	`, now, by, id)
	if err != nil {
		return nil, fmt.Errorf("redeem coupon: %w", err)
	}
	if err := affected(res, coupon.ErrNotActive); err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *CouponRepo) SetStatus(ctx context.Context, id string, status domain.CouponStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE coupons SET status = $1 WHERE id = $2 AND status = 'ACTIVE'`, status, id)
	if err != nil {
		return fmt.Errorf("set coupon status: %w", err)
	}
	return affected(res, coupon.ErrNotActive)
}

func (r *CouponRepo) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE coupons SET status = 'EXPIRED' WHERE status = 'ACTIVE' AND expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire coupons: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
