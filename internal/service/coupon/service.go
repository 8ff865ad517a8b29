package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/metrics"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/service/outbound"
)

const (
	maxCodeDraws = 5
	qrSize       = 256
)

// Service implements coupon issuance and redemption.
type Service struct {
	repo    Repository
	users   Users
	mailer  outbound.Mailer
	baseURL string
	now     func() time.Time
	newCode func() (string, error)
}

// NewService creates a coupon service. baseURL prefixes the validation
// link encoded in QR codes.
func NewService(repo Repository, users Users, mailer outbound.Mailer, baseURL string) *Service {
	return &Service{
		repo:    repo,
		users:   users,
		mailer:  mailer,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		newCode: NewCode,
	}
}

// ValidationURL is the link a merchant opens to check a coupon.
func (s *Service) ValidationURL(code string) string {
	return s.baseURL + "/coupons/validate/" + code
}

// Generate issues a coupon for offerID to the actor. If the actor already
// holds a usable coupon for the offer it is returned with created=false.
func (s *Service) Generate(ctx context.Context, actor domain.Actor, offerID string) (c *domain.Coupon, created bool, err error) {
	if actor.Role != domain.RoleEmployee {
		return nil, false, ErrForbidden
	}
	now := s.now().UTC()

	offer, err := s.repo.Offer(ctx, offerID)
	if err != nil {
		return nil, false, err
	}
	if !offer.Public(now) {
		return nil, false, ErrOfferUnavailable
	}

	existing, err := s.repo.ActiveFor(ctx, offerID, actor.UserID)
	switch {
	case err == nil && existing.Usable(now):
		return existing, false, nil
	case err == nil:
		// stale ACTIVE row would block the partial unique index
		if err := s.repo.SetStatus(ctx, existing.ID, domain.CouponExpired); err != nil && !errors.Is(err, ErrNotActive) {
			return nil, false, err
		}
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	c = &domain.Coupon{
		ID:         uuid.New().String(),
		OfferID:    offerID,
		OfferTitle: offer.Title,
		UserID:     actor.UserID,
		CompanyID:  offer.CompanyID,
		Status:     domain.CouponActive,
		ExpiresAt:  offer.CouponExpiry(now),
		CreatedAt:  now,
	}
	for attempt := 1; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, false, err
		}
		c.Code = code

		err = s.repo.Insert(ctx, c)
		if err == nil {
			break
		}
		if errors.Is(err, ErrDuplicateActive) {
			// lost a concurrent race for the same offer and user
			winner, rerr := s.repo.ActiveFor(ctx, offerID, actor.UserID)
			if rerr != nil {
				return nil, false, fmt.Errorf("re-read winning coupon: %w", rerr)
			}
			return winner, false, nil
		}
		if !errors.Is(err, ErrCodeTaken) {
			return nil, false, err
		}
		if attempt == maxCodeDraws {
			return nil, false, fmt.Errorf("coupon: no free code after %d draws", maxCodeDraws)
		}
		logger.Debug("coupon: code collision, redrawing", "attempt", attempt)
	}

	metrics.CouponsIssued.Inc()
	s.sendIssuedEmail(ctx, c, offer)
	return c, true, nil
}

func (s *Service) sendIssuedEmail(ctx context.Context, c *domain.Coupon, offer *domain.Offer) {
	u, err := s.users.Get(ctx, c.UserID)
	if err != nil {
		logger.Warn("coupon: load recipient failed", "coupon_id", c.ID, "error", err)
		return
	}
	if err := s.mailer.Enqueue(ctx, outbound.Email{
		To:       u.Email,
		ToName:   u.Name,
		Template: outbound.TemplateCouponIssued,
		Data: map[string]any{
			"name":           u.Name,
			"code":           c.Code,
			"offer_title":    offer.Title,
			"company_name":   offer.CompanyName,
			"discount":       offer.DiscountLabel,
			"expires_at":     c.ExpiresAt,
			"validation_url": s.ValidationURL(c.Code),
		},
	}); err != nil {
		logger.Warn("coupon: email enqueue failed", "coupon_id", c.ID, "error", err)
	}
}

func canView(actor domain.Actor, c *domain.Coupon) bool {
	return actor.UserID == c.UserID || actor.IsStaff() || actor.ActsForCompany(c.CompanyID)
}

// Get returns a coupon to its owner, staff, or the issuing company.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Coupon, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(actor, c) {
		return nil, ErrForbidden
	}
	return c, nil
}

// ListMine returns the actor's coupons.
func (s *Service) ListMine(ctx context.Context, actor domain.Actor, f ListFilter) ([]domain.Coupon, int, error) {
	f.UserID = actor.UserID
	f.CompanyID = ""
	return s.repo.List(ctx, f)
}

// ListForCompany returns coupons issued for a company's offers.
func (s *Service) ListForCompany(ctx context.Context, actor domain.Actor, companyID string, f ListFilter) ([]domain.Coupon, int, error) {
	if !actor.IsStaff() && !actor.ActsForCompany(companyID) {
		return nil, 0, ErrForbidden
	}
	f.CompanyID = companyID
	f.UserID = ""
	return s.repo.List(ctx, f)
}

// QR renders a PNG QR code of the coupon's validation URL.
func (s *Service) QR(ctx context.Context, actor domain.Actor, id string) ([]byte, error) {
	c, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s.ValidationURL(c.Code), qrcode.Medium, qrSize)
	if err != nil {
		return nil, fmt.Errorf("coupon: encode qr: %w", err)
	}
	return png, nil
}

// Redeem consumes a coupon at the issuing company's point of sale.
func (s *Service) Redeem(ctx context.Context, actor domain.Actor, code string) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ValidCode(code) {
		return nil, ErrNotFound
	}
	c, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !actor.ActsForCompany(c.CompanyID) {
		return nil, ErrForbidden
	}

	now := s.now().UTC()
	redeemed, err := s.repo.Redeem(ctx, c.ID, actor.UserID, now)
	if err == nil {
		metrics.CouponsRedeemed.Inc()
		return redeemed, nil
	}
	if !errors.Is(err, ErrNotActive) {
		return nil, err
	}

	// condition failed: find out why from the current row
	cur, err := s.repo.Get(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	switch cur.Status {
	case domain.CouponRedeemed:
		return nil, ErrAlreadyRedeemed
	case domain.CouponExpired:
		return nil, ErrExpired
	case domain.CouponActive:
		if !cur.ExpiresAt.After(now) {
			if err := s.repo.SetStatus(ctx, cur.ID, domain.CouponExpired); err != nil && !errors.Is(err, ErrNotActive) {
				logger.Warn("coupon: mark expired failed", "coupon_id", cur.ID, "error", err)
			}
			return nil, ErrExpired
		}
	}
	return nil, ErrNotActive
}

// Cancel voids an ACTIVE coupon. Owner or admin.
func (s *Service) Cancel(ctx context.Context, actor domain.Actor, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if actor.UserID != c.UserID && !actor.IsAdmin() {
		return ErrForbidden
	}
	return s.repo.SetStatus(ctx, id, domain.CouponCancelled)
}

// ExpireDue is run by the worker to close out lapsed coupons.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	n, err := s.repo.ExpireDue(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.CouponsExpired.Add(float64(n))
	}
	return n, nil
}
