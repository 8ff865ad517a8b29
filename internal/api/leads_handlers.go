package api

import (
	"net/http"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/httputil"
	"github.com/lapublica/platform/internal/service/lead"
)

// ListLeads returns leads; gestors only see their own.
//
//	GET /api/leads?stage=&gestor_id=&search=&page=&limit=
func (h *Handlers) ListLeads(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p := parsePage(r, tableSize)
	q := r.URL.Query()
	items, total, err := h.svc.Leads.List(r.Context(), a, lead.ListFilter{
		GestorID: q.Get("gestor_id"),
		Stage:    domain.LeadStage(q.Get("stage")),
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

func (h *Handlers) CreateLead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in lead.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	l, err := h.svc.Leads.Create(r.Context(), a, in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, l)
}

// LeadPipeline returns count and value per stage.
//
//	GET /api/leads/pipeline?gestor_id=
func (h *Handlers) LeadPipeline(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	stages, err := h.svc.Leads.Pipeline(r.Context(), a, r.URL.Query().Get("gestor_id"))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"stages": stages})
}

func (h *Handlers) GetLead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	l, err := h.svc.Leads.Get(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, l)
}

func (h *Handlers) UpdateLead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var u lead.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	l, err := h.svc.Leads.Update(r.Context(), a, idParam(r), u)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, l)
}

func (h *Handlers) DeleteLead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Leads.Delete(r.Context(), a, idParam(r)); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

type stageRequest struct {
	Stage      domain.LeadStage `json:"stage"`
	LostReason string           `json:"lost_reason"`
}

// ChangeLeadStage moves a lead through the pipeline.
//
//	POST /api/leads/{id}/stage {"stage": "LOST", "lost_reason": "..."}
func (h *Handlers) ChangeLeadStage(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req stageRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	l, err := h.svc.Leads.ChangeStage(r.Context(), a, idParam(r), req.Stage, req.LostReason)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, l)
}

func (h *Handlers) AssignLead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req gestorRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	l, err := h.svc.Leads.Assign(r.Context(), a, idParam(r), req.GestorID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, l)
}

// ConvertLead creates a company from a WON lead.
func (h *Handlers) ConvertLead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Leads.Convert(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (h *Handlers) ListLeadTasks(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	tasks, err := h.svc.Leads.ListTasks(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"data": tasks})
}

func (h *Handlers) CreateLeadTask(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in lead.TaskInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	t, err := h.svc.Leads.CreateTask(r.Context(), a, idParam(r), in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, t)
}

// MyTasks returns the actor's open tasks.
//
//	GET /api/tasks/mine?due_before=<RFC3339>
func (h *Handlers) MyTasks(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	due, err := queryTime(r, "due_before")
	if err != nil {
		httputil.BadRequest(w, "due_before must be an RFC 3339 timestamp")
		return
	}
	tasks, err := h.svc.Leads.MyTasks(r.Context(), a, due)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"data": tasks})
}

func (h *Handlers) CompleteTask(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Leads.CompleteTask(r.Context(), a, idParam(r)); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Leads.DeleteTask(r.Context(), a, idParam(r)); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}
