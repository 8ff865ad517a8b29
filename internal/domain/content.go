package domain

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ContentKind distinguishes announcements from blog posts.
type ContentKind string

const (
	KindAnnouncement ContentKind = "ANNOUNCEMENT"
	KindBlog         ContentKind = "BLOG"
)

// Valid reports whether k is a known kind.
func (k ContentKind) Valid() bool { return k == KindAnnouncement || k == KindBlog }

// ContentStatus is the moderation state of a piece of content.
type ContentStatus string

const (
	ContentDraft     ContentStatus = "DRAFT"
	ContentPending   ContentStatus = "PENDING"
	ContentPublished ContentStatus = "PUBLISHED"
	ContentRejected  ContentStatus = "REJECTED"
	ContentArchived  ContentStatus = "ARCHIVED"
)

var contentTransitions = map[ContentStatus][]ContentStatus{
	ContentDraft:     {ContentPending},
	ContentPending:   {ContentPublished, ContentRejected},
	ContentRejected:  {ContentPending},
	ContentPublished: {ContentArchived},
}

// CanTransitionTo reports whether s may move to next.
func (s ContentStatus) CanTransitionTo(next ContentStatus) bool {
	for _, v := range contentTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// Editable is true while the author may still change the text.
func (s ContentStatus) Editable() bool {
	return s == ContentDraft || s == ContentRejected
}

// AI pre-screen verdicts.
const (
	VerdictOK          = "ok"
	VerdictReview      = "review"
	VerdictUnavailable = "unavailable"
)

// Content is an announcement or blog post subject to moderation.
type Content struct {
	ID             string        `json:"id"`
	Kind           ContentKind   `json:"kind"`
	AuthorID       string        `json:"author_id"`
	AuthorName     string        `json:"author_name,omitempty"`
	CompanyID      *string       `json:"company_id,omitempty"`
	Title          string        `json:"title"`
	Slug           string        `json:"slug,omitempty"`
	Summary        string        `json:"summary,omitempty"`
	Body           string        `json:"body"`
	Category       string        `json:"category,omitempty"`
	ImageURL       string        `json:"image_url,omitempty"`
	SourceURL      *string       `json:"source_url,omitempty"`
	Status         ContentStatus `json:"status"`
	AIVerdict      string        `json:"ai_verdict,omitempty"`
	AIReason       string        `json:"ai_reason,omitempty"`
	ModerationNote string        `json:"moderation_note,omitempty"`
	ModeratedBy    *string       `json:"moderated_by,omitempty"`
	PublishedAt    *time.Time    `json:"published_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify turns a title into a lower-case ASCII, hyphen separated slug.
// Accents are folded ("Què és" -> "que-es").
func Slugify(title string) string {
	folded, _, err := transform.String(foldAccents, title)
	if err != nil {
		folded = title
	}
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if len(s) > 80 {
		s = strings.TrimSuffix(s[:80], "-")
	}
	if s == "" {
		s = "post"
	}
	return s
}
