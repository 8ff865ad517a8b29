package api

import (
	"context"
	"net/http"

	"github.com/lapublica/platform/internal/pkg/httputil"
)

// Events streams the session user's realtime events as server-sent events.
//
//	GET /api/events
func (h *Handlers) Events(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if h.hub == nil {
		httputil.Error(w, http.StatusServiceUnavailable, "realtime events unavailable")
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.streams, cancel)
	defer stop()
	h.hub.Serve(w, r.WithContext(ctx), a.UserID)
}
