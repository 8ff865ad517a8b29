package api

import (
	"net/http"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/httputil"
	"github.com/lapublica/platform/internal/service/content"
)

func contentFilter(r *http.Request, p pageRequest) content.ListFilter {
	q := r.URL.Query()
	return content.ListFilter{
		Kind:     domain.ContentKind(q.Get("kind")),
		Category: q.Get("category"),
		Status:   domain.ContentStatus(q.Get("status")),
		Limit:    p.Limit,
		Offset:   p.Offset,
	}
}

// ListPublishedContent returns published announcements and blog posts.
//
//	GET /api/content?kind=&category=&page=&limit=
func (h *Handlers) ListPublishedContent(w http.ResponseWriter, r *http.Request) {
	p := parsePage(r, gridSize)
	items, total, err := h.svc.Content.ListPublished(r.Context(), contentFilter(r, p))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	writePage(w, items, p, total)
}

// ListPendingContent returns the moderation queue.
func (h *Handlers) ListPendingContent(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p := parsePage(r, tableSize)
	items, total, err := h.svc.Content.ListPending(r.Context(), a, contentFilter(r, p))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	writePage(w, items, p, total)
}

func (h *Handlers) ListMyContent(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p := parsePage(r, tableSize)
	items, total, err := h.svc.Content.ListMine(r.Context(), a, contentFilter(r, p))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	writePage(w, items, p, total)
}

func (h *Handlers) CreateContent(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in content.CreateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.svc.Content.Create(r.Context(), a, in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (h *Handlers) GetContent(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Content.Get(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) UpdateContent(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var u content.UpdateFields
	if !httputil.Decode(w, r, &u) {
		return
	}
	c, err := h.svc.Content.Update(r.Context(), a, idParam(r), u)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, c)
}

// SubmitContent sends a draft to moderation.
func (h *Handlers) SubmitContent(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Content.Submit(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, c)
}

// ModerateContent publishes or rejects pending content.
//
//	POST /api/content/{id}/moderate {"approve": false, "note": "..."}
func (h *Handlers) ModerateContent(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in content.ModerateInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.svc.Content.Moderate(r.Context(), a, idParam(r), in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, c)
}

func (h *Handlers) ArchiveContent(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Content.Archive(r.Context(), a, idParam(r)); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

// UploadContentImage stores an image and returns its CDN URLs.
func (h *Handlers) UploadContentImage(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	data, ok := h.readUpload(w, r)
	if !ok {
		return
	}
	img, err := h.svc.Content.UploadImage(r.Context(), a, data)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, img)
}
