package domain

import (
	"sort"
	"strings"
	"time"
)

// Message body limits, in characters.
const (
	MaxMessageLength = 5000
	PreviewLength    = 120
)

// Conversation is a message thread between two or more users.
type Conversation struct {
	ID            string          `json:"id"`
	Subject       string          `json:"subject,omitempty"`
	IsDirect      bool            `json:"is_direct"`
	CreatedBy     string          `json:"created_by"`
	LastMessageAt time.Time       `json:"last_message_at"`
	CreatedAt     time.Time       `json:"created_at"`
	Participants  []Participant   `json:"participants,omitempty"`
	LastMessage   *MessagePreview `json:"last_message,omitempty"`
	UnreadCount   int             `json:"unread_count"`
	Archived      bool            `json:"archived"`
}

// Participant is a member of a conversation with per-user read state.
type Participant struct {
	UserID     string     `json:"user_id"`
	Name       string     `json:"name,omitempty"`
	Role       Role       `json:"role,omitempty"`
	LastReadAt *time.Time `json:"last_read_at,omitempty"`
	Archived   bool       `json:"archived"`
	JoinedAt   time.Time  `json:"joined_at"`
}

// Message is one post in a conversation.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderName     string    `json:"sender_name,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// MessagePreview summarizes the latest message of a thread.
type MessagePreview struct {
	SenderID  string    `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// DirectKey identifies the one-to-one thread between a and b.
func DirectKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}

// Preview truncates body to PreviewLength characters.
func Preview(body string) string {
	r := []rune(body)
	if len(r) <= PreviewLength {
		return body
	}
	return string(r[:PreviewLength-1]) + "…"
}
