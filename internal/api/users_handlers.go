package api

import (
	"net/http"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/httputil"
	"github.com/lapublica/platform/internal/service/user"
)

// ListUsers returns accounts filtered by role, search and active flag.
//
//	GET /api/users?role=&search=&active=&page=&limit=
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p := parsePage(r, tableSize)
	q := r.URL.Query()
	users, total, err := h.svc.Users.List(r.Context(), a, user.ListFilter{
		Role:   domain.Role(q.Get("role")),
		Search: q.Get("search"),
		Active: queryBool(r, "active"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	writePage(w, users, p, total)
}

// CreateUser registers an account.
//
//	POST /api/users
func (h *Handlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in user.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	u, err := h.svc.Users.Create(r.Context(), a, in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, u)
}

// GetUser returns one account.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	u, err := h.svc.Users.Get(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, u)
}

// UpdateUser edits name, email, role or company.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in user.UpdateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	u, err := h.svc.Users.Update(r.Context(), a, idParam(r), in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, u)
}

type activeRequest struct {
	Active *bool `json:"active"`
}

// SetUserActive enables or disables an account.
//
//	POST /api/users/{id}/active {"active": false}
func (h *Handlers) SetUserActive(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Active == nil {
		httputil.BadRequest(w, "active is required")
		return
	}
	if err := h.svc.Users.SetActive(r.Context(), a, idParam(r), *req.Active); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

type passwordRequest struct {
	Current string `json:"current_password"`
	New     string `json:"new_password"`
}

// ChangePassword changes the session user's password.
//
//	PUT /api/me/password
func (h *Handlers) ChangePassword(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req passwordRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if err := h.svc.Users.ChangePassword(r.Context(), a, req.Current, req.New); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

// GetProfile returns a profile filtered by its owner's privacy settings.
func (h *Handlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Users.Profile(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, p)
}

// UpdateMyProfile edits the session user's profile fields.
func (h *Handlers) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in user.ProfileInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	u, err := h.svc.Users.UpdateProfile(r.Context(), a, in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, u)
}

// UpdateMyPrivacy replaces the session user's privacy settings.
func (h *Handlers) UpdateMyPrivacy(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in domain.PrivacySettings
	if !httputil.Decode(w, r, &in) {
		return
	}
	p, err := h.svc.Users.UpdatePrivacy(r.Context(), a, in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, p)
}
