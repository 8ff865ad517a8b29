package content

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/pkg/logger"
	"github.com/lapublica/platform/internal/pkg/validate"
	"github.com/lapublica/platform/internal/service/outbound"
)

const (
	maxBodyLength = 50000
	maxSlugTries  = 3
)

// Service implements the content workflow.
type Service struct {
	repo     Repository
	notifier outbound.Notifier
	audit    outbound.Auditor
	screener Screener
	images   Images
	fetcher  Fetcher
	now      func() time.Time
}

// Option configures optional collaborators.
type Option func(*Service)

// WithScreener enables AI pre-screening on submit.
func WithScreener(s Screener) Option { return func(svc *Service) { svc.screener = s } }

// WithImages enables image uploads.
func WithImages(i Images) Option { return func(svc *Service) { svc.images = i } }

// WithFetcher enables feed import.
func WithFetcher(f Fetcher) Option { return func(svc *Service) { svc.fetcher = f } }

// NewService creates a content service.
func NewService(repo Repository, notifier outbound.Notifier, audit outbound.Auditor, opts ...Option) *Service {
	s := &Service{repo: repo, notifier: notifier, audit: audit, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateInput holds the fields for new content.
type CreateInput struct {
	Kind     domain.ContentKind `json:"kind"`
	Title    string             `json:"title"`
	Summary  string             `json:"summary"`
	Body     string             `json:"body"`
	Category string             `json:"category"`
	ImageURL string             `json:"image_url"`
}

func check(v validate.Errors, title, summary, body *string) {
	if title != nil {
		v.Length("title", *title, 3, 200)
	}
	if summary != nil {
		v.Length("summary", *summary, 0, 300)
	}
	if body != nil {
		v.Length("body", *body, 1, maxBodyLength)
	}
}

// Create stores a DRAFT. Any user may write announcements; blog posts are
// written by staff.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Content, error) {
	if in.Kind == "" {
		in.Kind = domain.KindAnnouncement
	}
	in.Title = strings.TrimSpace(in.Title)
	v := validate.Errors{}
	if !in.Kind.Valid() {
		v.Add("kind", "must be ANNOUNCEMENT or BLOG")
	}
	check(v, &in.Title, &in.Summary, &in.Body)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if in.Kind == domain.KindBlog && !actor.IsStaff() {
		return nil, ErrForbidden
	}

	now := s.now().UTC()
	c := &domain.Content{
		ID:        uuid.New().String(),
		Kind:      in.Kind,
		AuthorID:  actor.UserID,
		Title:     in.Title,
		Summary:   strings.TrimSpace(in.Summary),
		Body:      strings.TrimSpace(in.Body),
		Category:  strings.TrimSpace(in.Category),
		ImageURL:  in.ImageURL,
		Status:    domain.ContentDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if actor.Role == domain.RoleCompany && actor.CompanyID != "" {
		cid := actor.CompanyID
		c.CompanyID = &cid
	}
	if err := s.insert(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// insert stores c, assigning a unique slug to blog posts.
func (s *Service) insert(ctx context.Context, c *domain.Content) error {
	if c.Kind != domain.KindBlog {
		return s.repo.Create(ctx, c)
	}
	base := domain.Slugify(c.Title)
	for try := 0; ; try++ {
		taken, err := s.repo.Slugs(ctx, base)
		if err != nil {
			return err
		}
		c.Slug = NextSlug(base, taken)
		err = s.repo.Create(ctx, c)
		if !errors.Is(err, ErrSlugTaken) || try == maxSlugTries-1 {
			return err
		}
	}
}

// NextSlug returns base, or base-N with the smallest N >= 2 not in taken.
func NextSlug(base string, taken []string) string {
	used := make(map[string]bool, len(taken))
	for _, t := range taken {
		used[t] = true
	}
	if !used[base] {
		return base
	}
	for n := 2; ; n++ {
		candidate := base + "-" + strconv.Itoa(n)
		if !used[candidate] {
			return candidate
		}
	}
}

func (s *Service) authored(ctx context.Context, actor domain.Actor, id string) (*domain.Content, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AuthorID != actor.UserID {
		return nil, ErrForbidden
	}
	return c, nil
}

// Update edits the author's own DRAFT or REJECTED content.
func (s *Service) Update(ctx context.Context, actor domain.Actor, id string, u UpdateFields) (*domain.Content, error) {
	c, err := s.authored(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.Editable() {
		return nil, ErrNotEditable
	}
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		u.Title = &t
	}
	v := validate.Errors{}
	check(v, u.Title, u.Summary, u.Body)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Submit sends the author's content for moderation, recording the AI
// pre-screen verdict when a screener is configured.
func (s *Service) Submit(ctx context.Context, actor domain.Actor, id string) (*domain.Content, error) {
	c, err := s.authored(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !c.Status.CanTransitionTo(domain.ContentPending) {
		return nil, ErrInvalidTransition
	}

	var f TransitionFields
	if s.screener != nil {
		verdict, reason, err := s.screener.Screen(ctx, c.Title, c.Body)
		if err != nil {
			logger.Warn("content: pre-screen failed", "content_id", id, "error", err)
			verdict, reason = domain.VerdictUnavailable, ""
		}
		f.AIVerdict, f.AIReason = verdict, reason
	}
	from := []domain.ContentStatus{domain.ContentDraft, domain.ContentRejected}
	if err := s.repo.Transition(ctx, id, from, domain.ContentPending, f); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// ModerateInput is an admin's verdict on pending content.
type ModerateInput struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// Moderate publishes or rejects PENDING content. Admin only.
func (s *Service) Moderate(ctx context.Context, actor domain.Actor, id string, in ModerateInput) (*domain.Content, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	note := strings.TrimSpace(in.Note)
	if !in.Approve && note == "" {
		return nil, ErrNoteRequired
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	next := domain.ContentRejected
	f := TransitionFields{ModerationNote: note, ModeratedBy: actor.UserID}
	if in.Approve {
		next = domain.ContentPublished
		f.PublishedAt = &now
	}
	if !c.Status.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}
	if err := s.repo.Transition(ctx, id, []domain.ContentStatus{domain.ContentPending}, next, f); err != nil {
		return nil, err
	}

	verdict := "publicat"
	if !in.Approve {
		verdict = "rebutjat"
	}
	if err := s.notifier.Notify(ctx, c.AuthorID, outbound.Note{
		Type:     domain.NotifyContentModerated,
		Title:    fmt.Sprintf("Contingut %s: %s", verdict, c.Title),
		Body:     note,
		Link:     "/content/" + c.ID,
		Priority: domain.PriorityNormal,
	}); err != nil {
		logger.Warn("content: notify author failed", "content_id", id, "error", err)
	}
	s.audit.Record(ctx, domain.AuditEvent{
		Entity:   domain.EntityContent,
		EntityID: id,
		Action:   "moderated",
		ActorID:  actor.UserID,
		Details:  map[string]string{"status": string(next), "ai_verdict": c.AIVerdict},
	})
	return s.repo.Get(ctx, id)
}

// Archive withdraws PUBLISHED content. Author or admin.
func (s *Service) Archive(ctx context.Context, actor domain.Actor, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.AuthorID != actor.UserID && !actor.IsAdmin() {
		return ErrForbidden
	}
	return s.repo.Transition(ctx, id, []domain.ContentStatus{domain.ContentPublished}, domain.ContentArchived, TransitionFields{})
}

// Get returns published content to anyone, and any state to its author or
// an admin.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Content, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != domain.ContentPublished && c.AuthorID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrNotFound
	}
	return c, nil
}

// ListPublished returns published content, newest first.
func (s *Service) ListPublished(ctx context.Context, f ListFilter) ([]domain.Content, int, error) {
	f.Status = domain.ContentPublished
	f.AuthorID = ""
	return s.repo.List(ctx, f)
}

// ListPending returns the moderation queue. Admin only.
func (s *Service) ListPending(ctx context.Context, actor domain.Actor, f ListFilter) ([]domain.Content, int, error) {
	if !actor.IsAdmin() {
		return nil, 0, ErrForbidden
	}
	f.Status = domain.ContentPending
	return s.repo.List(ctx, f)
}

// ListMine returns the actor's own content in any state.
func (s *Service) ListMine(ctx context.Context, actor domain.Actor, f ListFilter) ([]domain.Content, int, error) {
	f.AuthorID = actor.UserID
	return s.repo.List(ctx, f)
}

// UploadImage stores an image for use in content.
func (s *Service) UploadImage(ctx context.Context, actor domain.Actor, data []byte) (domain.StoredImage, error) {
	if s.images == nil {
		return domain.StoredImage{}, errors.New("content: image storage not configured")
	}
	return s.images.Upload(ctx, "content/"+actor.UserID, data)
}

// ImportFeeds pulls every company news feed and stores unseen items as
// blog drafts. A failing feed is logged and skipped.
func (s *Service) ImportFeeds(ctx context.Context) (int, error) {
	if s.fetcher == nil {
		return 0, nil
	}
	sources, err := s.repo.FeedSources(ctx)
	if err != nil {
		return 0, err
	}
	imported := 0
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		items, err := s.fetcher.Fetch(ctx, src.URL)
		if err != nil {
			logger.Warn("content: feed fetch failed", "company_id", src.CompanyID, "error", err)
			continue
		}
		for _, it := range items {
			ok, err := s.importItem(ctx, src, it)
			if err != nil {
				logger.Warn("content: feed item import failed", "company_id", src.CompanyID, "link", it.Link, "error", err)
				continue
			}
			if ok {
				imported++
			}
		}
	}
	if imported > 0 {
		logger.Info("content: feed items imported", "count", imported)
	}
	return imported, nil
}

func (s *Service) importItem(ctx context.Context, src FeedSource, it FeedItem) (bool, error) {
	title := strings.TrimSpace(it.Title)
	link := strings.TrimSpace(it.Link)
	if link == "" || len([]rune(title)) < 3 {
		return false, nil
	}
	body := strings.TrimSpace(it.Body)
	if body == "" {
		body = strings.TrimSpace(it.Summary)
	}
	if body == "" {
		body = link
	}
	if r := []rune(title); len(r) > 200 {
		title = string(r[:200])
	}
	summary := it.Summary
	if r := []rune(summary); len(r) > 300 {
		summary = string(r[:300])
	}

	now := s.now().UTC()
	cid := src.CompanyID
	c := &domain.Content{
		ID:        uuid.New().String(),
		Kind:      domain.KindBlog,
		AuthorID:  src.AuthorID,
		CompanyID: &cid,
		Title:     title,
		Summary:   summary,
		Body:      body,
		ImageURL:  it.ImageURL,
		SourceURL: &link,
		Status:    domain.ContentDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.insert(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateSource) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
