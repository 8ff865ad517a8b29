package api

import (
	"net/http"
	"strconv"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/httputil"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/service/coupon"
	"github.com/lapublica/platform/internal/service/offer"
)

// ListOffers returns the offer catalogue.
//
//	GET /api/offers?company_id=&category=&search=&page=&limit=
func (h *Handlers) ListOffers(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p := parsePage(r, gridSize)
	q := r.URL.Query()
	items, total, err := h.svc.Offers.List(r.Context(), a, offer.ListFilter{
		CompanyID: q.Get("company_id"),
		Category:  q.Get("category"),
		Search:    q.Get("search"),
		Limit:     p.Limit,
		Offset:    p.Offset,
	})
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	writePage(w, items, p, total)
}

func (h *Handlers) CreateOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in offer.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	o, err := h.svc.Offers.Create(r.Context(), a, in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, o)
}

func (h *Handlers) GetOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	o, err := h.svc.Offers.Get(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, o)
}

func (h *Handlers) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var u offer.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	o, err := h.svc.Offers.Update(r.Context(), a, idParam(r), u)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, o)
}

func (h *Handlers) DeactivateOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Offers.Deactivate(r.Context(), a, idParam(r)); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

// GenerateCoupon issues the actor's coupon for an offer. Returns 201 for a
// new coupon and 200 when the actor already holds an active one.
//
//	POST /api/offers/{id}/coupons
func (h *Handlers) GenerateCoupon(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	c, created, err := h.svc.Coupons.Generate(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	if created {
		httputil.Created(w, c)
		return
	}
	httputil.OK(w, c)
}

func couponFilter(r *http.Request, p pageRequest) coupon.ListFilter {
	return coupon.ListFilter{
		Status: domain.CouponStatus(r.URL.Query().Get("status")),
		Limit:  p.Limit,
		Offset: p.Offset,
	}
}

// ListMyCoupons returns the session user's coupons.
func (h *Handlers) ListMyCoupons(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p := parsePage(r, gridSize)
	items, total, err := h.svc.Coupons.ListMine(r.Context(), a, couponFilter(r, p))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	writePage(w, items, p, total)
}

// ListCompanyCoupons returns coupons issued against a company's offers.
func (h *Handlers) ListCompanyCoupons(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p := parsePage(r, tableSize)
	items, total, err := h.svc.Coupons.ListForCompany(r.Context(), a, idParam(r), couponFilter(r, p))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	writePage(w, items, p, total)
}

func (h *Handlers) GetCoupon(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Coupons.Get(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, c)
}

// CouponQR returns the coupon's validation QR code as PNG.
func (h *Handlers) CouponQR(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	png, err := h.svc.Coupons.QR(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		logger.Debug("qr write failed", "error", err)
	}
}

func (h *Handlers) CancelCoupon(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Coupons.Cancel(r.Context(), a, idParam(r)); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

type redeemRequest struct {
	Code string `json:"code"`
}

// RedeemCoupon marks a coupon used at the issuing company.
//
//	POST /api/coupons/redeem {"code": "LP-..."}
func (h *Handlers) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req redeemRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Code == "" {
		httputil.BadRequest(w, "code is required")
		return
	}
	c, err := h.svc.Coupons.Redeem(r.Context(), a, req.Code)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, c)
}
