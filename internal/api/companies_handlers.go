package api

import (
	"net/http"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/httputil"
	"github.com/lapublica/platform/internal/service/billing"
	"github.com/lapublica/platform/internal/service/company"
)

// ListCompanies returns companies visible to the actor.
//
//	GET /api/companies?status=&gestor_id=&search=&page=&limit=
func (h *Handlers) ListCompanies(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p := parsePage(r, tableSize)
	q := r.URL.Query()
	items, total, err := h.svc.Companies.List(r.Context(), a, company.ListFilter{
		Status:   domain.CompanyStatus(q.Get("status")),
		GestorID: q.Get("gestor_id"),
		Search:   q.Get("search"),
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	writePage(w, items, p, total)
}

func (h *Handlers) CreateCompany(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in company.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.svc.Companies.Create(r.Context(), a, in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (h *Handlers) GetCompany(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Companies.Get(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) UpdateCompany(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var u company.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	c, err := h.svc.Companies.Update(r.Context(), a, idParam(r), u)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, c)
}

type gestorRequest struct {
	GestorID string `json:"gestor_id"`
}

// AssignCompanyGestor sets the company's account manager.
//
//	POST /api/companies/{id}/gestor {"gestor_id": "..."}
func (h *Handlers) AssignCompanyGestor(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req gestorRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	c, err := h.svc.Companies.AssignGestor(r.Context(), a, idParam(r), req.GestorID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, c)
}

type statusRequest struct {
	Status domain.CompanyStatus `json:"status"`
}

// SetCompanyStatus moves a company between PENDING, ACTIVE and SUSPENDED.
func (h *Handlers) SetCompanyStatus(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.svc.Companies.SetStatus(r.Context(), a, idParam(r), req.Status); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

// UploadCompanyLogo stores a new logo from a multipart "file" field or a raw body.
func (h *Handlers) UploadCompanyLogo(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	data, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Companies.UploadLogo(r.Context(), a, idParam(r), data)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, c)
}

// PreviewPlanChange quotes a plan change without applying it.
//
//	GET /api/companies/{id}/billing/preview?plan_id=
func (h *Handlers) PreviewPlanChange(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	planID := r.URL.Query().Get("plan_id")
	if planID == "" {
		httputil.BadRequest(w, "plan_id is required")
		return
	}
	q, err := h.svc.Billing.PreviewChange(r.Context(), a, idParam(r), planID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, q)
}

type planChangeRequest struct {
	PlanID string `json:"plan_id"`
}

// ApplyPlanChange switches the company's plan and records the billing event.
func (h *Handlers) ApplyPlanChange(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req planChangeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.PlanID == "" {
		httputil.BadRequest(w, "plan_id is required")
		return
	}
	ev, err := h.svc.Billing.ApplyChange(r.Context(), a, idParam(r), req.PlanID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, ev)
}

func (h *Handlers) ListBillingEvents(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	events, err := h.svc.Billing.Events(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"data": events})
}

func (h *Handlers) ListPlans(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	plans, err := h.svc.Billing.ListPlans(r.Context(), a)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"data": plans})
}

func (h *Handlers) CreatePlan(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in billing.PlanInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	p, err := h.svc.Billing.CreatePlan(r.Context(), a, in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, p)
}

func (h *Handlers) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var u billing.PlanFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	p, err := h.svc.Billing.UpdatePlan(r.Context(), a, idParam(r), u)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, p)
}
