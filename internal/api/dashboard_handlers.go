package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lapublica/platform/internal/pkg/httputil"
)

func (h *Handlers) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	st, err := h.svc.Dashboard.Admin(r.Context(), a)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, st)
}

// GestorDashboard returns a gestor's workload. Admins pass ?gestor_id=.
func (h *Handlers) GestorDashboard(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	st, err := h.svc.Dashboard.Gestor(r.Context(), a, r.URL.Query().Get("gestor_id"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, st)
}

// CompanyDashboard defaults to the actor's own company.
//
//	GET /api/dashboard/company?company_id=
func (h *Handlers) CompanyDashboard(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	st, err := h.svc.Dashboard.Company(r.Context(), a, r.URL.Query().Get("company_id"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, st)
}

// AuditTrail lists audit events for one entity, newest first.
//
//	GET /api/audit/{entity}/{id}?limit=
func (h *Handlers) AuditTrail(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	events, err := h.svc.Audit.ListForEntity(r.Context(),
		chi.URLParam(r, "entity"), idParam(r), queryInt(r, "limit", tableSize.def))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"data": events})
}
