package content

import (
	"context"
	"time"

	"github.com/lapublica/platform/internal/domain"
)

// Repository defines the data access contract for content.
type Repository interface {
	// Create inserts c. Returns ErrSlugTaken or ErrDuplicateSource on the
	// matching unique violation.
	Create(ctx context.Context, c *domain.Content) error
	Get(ctx context.Context, id string) (*domain.Content, error)
	List(ctx context.Context, f ListFilter) ([]domain.Content, int, error)
	Update(ctx context.Context, id string, u UpdateFields) error

	// Transition moves c to next only if its status is one of from.
	// Returns ErrInvalidTransition when no row matched.
	Transition(ctx context.Context, id string, from []domain.ContentStatus, next domain.ContentStatus, f TransitionFields) error

	// Slugs returns existing slugs equal to base or of the form base-N.
	Slugs(ctx context.Context, base string) ([]string, error)

	// FeedSources lists companies with a news feed and the user their
	// imported posts are attributed to.
	FeedSources(ctx context.Context) ([]FeedSource, error)
}

// TransitionFields are written together with a status change. Zero values
// leave the column unchanged.
type TransitionFields struct {
	AIVerdict      string
	AIReason       string
	ModerationNote string
	ModeratedBy    string
	PublishedAt    *time.Time
}

// Screener pre-screens a submission and returns a verdict of
// domain.VerdictOK or domain.VerdictReview with a short reason.
type Screener interface {
	Screen(ctx context.Context, title, body string) (verdict, reason string, err error)
}

// Images stores uploaded content images.
type Images interface {
	Upload(ctx context.Context, prefix string, data []byte) (domain.StoredImage, error)
}

// FeedSource is a company whose news feed is imported as blog drafts.
type FeedSource struct {
	CompanyID string
	URL       string
	AuthorID  string
}

// FeedItem is one entry of a parsed feed.
type FeedItem struct {
	Title     string
	Link      string
	Summary   string
	Body      string
	ImageURL  string
	Published *time.Time
}

// Fetcher downloads and parses a feed.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]FeedItem, error)
}

// ListFilter controls pagination and filtering for content lists.
type ListFilter struct {
	Kind     domain.ContentKind
	Category string
	Status   domain.ContentStatus
	AuthorID string
	Limit    int
	Offset   int
}

// UpdateFields holds optional editable fields. Nil means unchanged.
type UpdateFields struct {
	Title    *string `json:"title"`
	Summary  *string `json:"summary"`
	Body     *string `json:"body"`
	Category *string `json:"category"`
	ImageURL *string `json:"image_url"`
}
