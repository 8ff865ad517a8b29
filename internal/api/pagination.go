package api

import (
	"net/http"
	"strconv"
)

// listSize is the default and largest page a list endpoint serves.
type listSize struct {
	def, max int
}

// Admin tables, card grids (offers, coupons, news) and inbox panes.
var (
	tableSize = listSize{def: 50, max: 200}
	gridSize  = listSize{def: 24, max: 96}
	inboxSize = listSize{def: 20, max: 100}
)

// maxPage bounds the OFFSET a client can make the database skip.
const maxPage = 10000

// pageRequest is the window a list request asks for.
type pageRequest struct {
	Page   int
	Limit  int
	Offset int
}

// parsePage reads ?page= (1-based) and ?limit= for a list of the given size.
func parsePage(r *http.Request, size listSize) pageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	page = min(max(page, 1), maxPage)
	if limit < 1 {
		limit = size.def
	}
	limit = min(limit, size.max)
	return pageRequest{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// PageMeta describes where a page sits in the full result.
type PageMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

type pageResponse struct {
	Data       any      `json:"data"`
	Pagination PageMeta `json:"pagination"`
}

func newPage(data any, p pageRequest, total int) pageResponse {
	pages := max((total+p.Limit-1)/p.Limit, 1)
	return pageResponse{
		Data: data,
		Pagination: PageMeta{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      total,
			TotalPages: pages,
			HasMore:    p.Page < pages,
		},
	}
}
