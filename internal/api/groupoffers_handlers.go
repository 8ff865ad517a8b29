package api

import (
	"net/http"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/httputil"
	"github.com/lapublica/platform/internal/service/groupoffer"
)

// ListGroupOffers returns requests visible to the actor.
//
//	GET /api/group-offers?status=&company_id=&gestor_id=&page=&limit=
func (h *Handlers) ListGroupOffers(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p := parsePage(r, tableSize)
	q := r.URL.Query()
	items, total, err := h.svc.GroupOffers.List(r.Context(), a, groupoffer.ListFilter{
		CompanyID: q.Get("company_id"),
		GestorID:  q.Get("gestor_id"),
		Status:    domain.GroupOfferStatus(q.Get("status")),
		Limit:     p.Limit,
		Offset:    p.Offset,
	})
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	writePage(w, items, p, total)
}

func (h *Handlers) SubmitGroupOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in groupoffer.SubmitInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	g, err := h.svc.GroupOffers.Submit(r.Context(), a, in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, g)
}

func (h *Handlers) GetGroupOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	g, err := h.svc.GroupOffers.Get(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, g)
}

// ReviewGroupOffer moves a PENDING request to IN_REVIEW.
func (h *Handlers) ReviewGroupOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	g, err := h.svc.GroupOffers.StartReview(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, g)
}

// DecideGroupOffer approves or rejects a request under review.
//
//	POST /api/group-offers/{id}/decision {"approve": true, "notes": "..."}
func (h *Handlers) DecideGroupOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in groupoffer.DecideInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	g, err := h.svc.GroupOffers.Decide(r.Context(), a, idParam(r), in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, g)
}

func (h *Handlers) CancelGroupOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.GroupOffers.Cancel(r.Context(), a, idParam(r)); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

// ReassignGroupOffer hands a request to another gestor.
func (h *Handlers) ReassignGroupOffer(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req gestorRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	g, err := h.svc.GroupOffers.Reassign(r.Context(), a, idParam(r), req.GestorID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, g)
}
