package api

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lapublica/platform/internal/auth"
	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/httputil"
	"github.com/lapublica/platform/internal/realtime"
)

const defaultMaxUpload = 5 << 20

// Handlers contains all HTTP handlers
type Handlers struct {
	svc       Services
	hub       *realtime.Hub
	maxUpload int64
	streams   context.Context
}

// NewHandlers creates a new Handlers instance
func NewHandlers(svc Services, hub *realtime.Hub, maxUpload int64) *Handlers {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUpload
	}
	return &Handlers{svc: svc, hub: hub, maxUpload: maxUpload, streams: context.Background()}
}

// actor returns the session actor or writes 401.
func actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	a, ok := auth.ActorFrom(r.Context())
	if !ok {
		httputil.Unauthorized(w)
	}
	return a, ok
}

func idParam(r *http.Request) string { return chi.URLParam(r, "id") }

// writePage writes a list response with pagination metadata.
func writePage(w http.ResponseWriter, data interface{}, p pageRequest, total int) {
	httputil.OK(w, newPage(data, p, total))
}

// queryBool parses a boolean query parameter; absent or malformed is nil.
func queryBool(r *http.Request, key string) *bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	if err != nil {
		return nil
	}
	return &v
}

// queryTime parses an RFC 3339 query parameter.
func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryInt(r *http.Request, key string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// readUpload returns the uploaded bytes from a multipart "file" field or
// from the raw request body. Writes 400 or 413 and returns false on failure.
func (h *Handlers) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+64<<10)

	var src io.Reader = r.Body
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mt, "multipart/") {
		f, _, err := r.FormFile("file")
		if err != nil {
			if tooLarge(err) {
				httputil.TooLarge(w, "upload too large")
				return nil, false
			}
			httputil.BadRequest(w, "multipart field \"file\" is required")
			return nil, false
		}
		defer f.Close()
		src = f
	}

	data, err := io.ReadAll(io.LimitReader(src, h.maxUpload+1))
	switch {
	case tooLarge(err) || int64(len(data)) > h.maxUpload:
		httputil.TooLarge(w, "upload too large")
		return nil, false
	case err != nil:
		httputil.BadRequest(w, "could not read upload")
		return nil, false
	case len(data) == 0:
		httputil.BadRequest(w, "upload is empty")
		return nil, false
	}
	return data, true
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
