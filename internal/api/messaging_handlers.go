package api

import (
	"net/http"

	"github.com/lapublica/platform/internal/pkg/httputil"
	"github.com/lapublica/platform/internal/service/conversation"
	"github.com/lapublica/platform/internal/service/notification"
)

// ListConversations returns the actor's threads, newest activity first.
//
//	GET /api/conversations?archived=&page=&limit=
func (h *Handlers) ListConversations(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p := parsePage(r, inboxSize)
	archived := queryBool(r, "archived")
	items, total, err := h.svc.Conversations.List(r.Context(), a, conversation.ListFilter{
		Archived: archived != nil && *archived,
		Limit:    p.Limit,
		Offset:   p.Offset,
	})
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	writePage(w, items, p, total)
}

func (h *Handlers) StartConversation(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var in conversation.StartInput
	if !httputil.Decode(w, r, &in) {
		return
	}
	c, err := h.svc.Conversations.Start(r.Context(), a, in)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, c)
}

func (h *Handlers) GetConversation(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Conversations.Get(r.Context(), a, idParam(r))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, c)
}

// UnreadMessages returns the actor's unread message total.
func (h *Handlers) UnreadMessages(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	n, err := h.svc.Conversations.UnreadTotal(r.Context(), a)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"unread": n})
}

// ListMessages pages backwards through a thread.
//
// The next page starts from the created_at and id of the last message
// received.
//
//	GET /api/conversations/{id}/messages?before=<RFC3339>&before_id=&limit=
func (h *Handlers) ListMessages(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	at, err := queryTime(r, "before")
	if err != nil {
		httputil.BadRequest(w, "before must be an RFC 3339 timestamp")
		return
	}
	var cursor *conversation.Cursor
	if at != nil {
		cursor = &conversation.Cursor{At: *at, ID: r.URL.Query().Get("before_id")}
	} else if r.URL.Query().Get("before_id") != "" {
		httputil.BadRequest(w, "before_id requires before")
		return
	}
	msgs, err := h.svc.Conversations.Messages(r.Context(), a, idParam(r), cursor, queryInt(r, "limit", inboxSize.def))
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]interface{}{"data": msgs})
}

type messageRequest struct {
	Body string `json:"body"`
}

func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	m, err := h.svc.Conversations.Send(r.Context(), a, idParam(r), req.Body)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.Created(w, m)
}

func (h *Handlers) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Conversations.MarkRead(r.Context(), a, idParam(r)); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

type archiveRequest struct {
	Archived *bool `json:"archived"`
}

// ArchiveConversation hides or restores a thread for the actor. An empty
// body archives.
func (h *Handlers) ArchiveConversation(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	archived := true
	if r.ContentLength > 0 {
		var req archiveRequest
		if !httputil.Decode(w, r, &req) {
			return
		}
		if req.Archived != nil {
			archived = *req.Archived
		}
	}
	if err := h.svc.Conversations.Archive(r.Context(), a, idParam(r), archived); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

// ListNotifications returns the session user's notifications.
//
//	GET /api/notifications?unread=true&page=&limit=
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	p := parsePage(r, inboxSize)
	unread := queryBool(r, "unread")
	items, total, err := h.svc.Notifications.List(r.Context(), a.UserID, notification.ListFilter{
		UnreadOnly: unread != nil && *unread,
		Limit:      p.Limit,
		Offset:     p.Offset,
	})
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	writePage(w, items, p, total)
}

func (h *Handlers) UnreadNotificationCount(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	n, err := h.svc.Notifications.UnreadCount(r.Context(), a.UserID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"count": n})
}

func (h *Handlers) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Notifications.MarkRead(r.Context(), a.UserID, idParam(r)); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}

func (h *Handlers) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	n, err := h.svc.Notifications.MarkAllRead(r.Context(), a.UserID)
	if err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.OK(w, map[string]int{"updated": n})
}

func (h *Handlers) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if err := h.svc.Notifications.Delete(r.Context(), a.UserID, idParam(r)); err != nil {
		httputil.FromError(w, err)
		return
	}
	httputil.NoContent(w)
}
