package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"

	"github.com/lapublica/platform/internal/domain"
	"github.com/lapublica/platform/internal/service/content"
)

// ContentRepo implements content.Repository against PostgreSQL.
type ContentRepo struct{ db *sql.DB }

// NewContentRepo creates a Postgres-backed content repository.
func NewContentRepo(db *sql.DB) *ContentRepo { return &ContentRepo{db: db} }

const contentSelect = `
	SELECT ct.id, ct.kind, ct.author_id, u.name, ct.company_id, ct.title, ct.slug, ct.summary, ct.body,
	       ct.category, ct.image_url, ct.source_url, ct.status, ct.ai_verdict, ct.ai_reason,
	       ct.moderation_note, ct.moderated_by, ct.published_at, ct.created_at, ct.updated_at
	FROM content ct
	JOIN users u ON u.id = ct.author_id`

func scanContent(s rowScanner) (*domain.Content, error) {
	var (
		c           domain.Content
		companyID   sql.NullString
		slug        sql.NullString
		sourceURL   sql.NullString
		moderatedBy sql.NullString
		publishedAt sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.Kind, &c.AuthorID, &c.AuthorName, &companyID, &c.Title, &slug,
		&c.Summary, &c.Body, &c.Category, &c.ImageURL, &sourceURL, &c.Status, &c.AIVerdict,
		&c.AIReason, &c.ModerationNote, &moderatedBy, &publishedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.CompanyID = strPtr(companyID)
	c.Slug = slug.String
	c.SourceURL = strPtr(sourceURL)
	c.ModeratedBy = strPtr(moderatedBy)
	c.PublishedAt = timePtr(publishedAt)
	return &c, nil
}

func (r *ContentRepo) Create(ctx context.Context, c *domain.Content) error {
	var published sql.NullTime
	if c.PublishedAt != nil {
		published = sql.NullTime{Time: *c.PublishedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO content (id, kind, author_id, company_id, title, slug, summary, body, category,
			image_url, source_url, status, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, c.ID, c.Kind, c.AuthorID, nullStringPtr(c.CompanyID), c.Title, nullString(c.Slug), c.Summary,
		c.Body, c.Category, c.ImageURL, nullStringPtr(c.SourceURL), c.Status, published, c.CreatedAt, c.UpdatedAt)
	if constraint, ok := uniqueViolation(err); ok {
		if constraint == "content_source_url_key" {
			return content.ErrDuplicateSource
		}
		return content.ErrSlugTaken
	}
	if err != nil {
		return writeErr("insert content", err)
	}
	return nil
}

func (r *ContentRepo) Get(ctx context.Context, id string) (*domain.Content, error) {
	c, err := scanContent(r.db.QueryRowContext(ctx, contentSelect+` WHERE ct.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, content.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return c, nil
}

func (r *ContentRepo) List(ctx context.Context, f content.ListFilter) ([]domain.Content, int, error) {
	var w where
	if f.Kind != "" {
		w.add("ct.kind = ?", f.Kind)
	}
	if f.Category != "" {
		w.add("ct.category = ?", f.Category)
	}
	if f.Status != "" {
		w.add("ct.status = ?", f.Status)
	}
	if f.AuthorID != "" {
		w.add("ct.author_id = ?", f.AuthorID)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content ct`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count content: %w", err)
	}

	order := "ct.created_at DESC"
	if f.Status == domain.ContentPublished {
		order = "ct.published_at DESC"
	}
	q := contentSelect + w.sql()
	q += fmt.Sprintf(" ORDER BY %s LIMIT %s OFFSET %s", order, w.next(pageLimit(f.Limit)), w.next(f.Offset))
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list content: %w", err)
	}
	defer rows.Close()

	var out []domain.Content
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan content: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *ContentRepo) Update(ctx context.Context, id string, f content.UpdateFields) error {
	var u updates
	for _, kv := range []struct {
		col string
		val *string
	}{
		{"title", f.Title}, {"summary", f.Summary}, {"body", f.Body},
		{"category", f.Category}, {"image_url", f.ImageURL},
	} {
		if kv.val != nil {
			u.add(kv.col, *kv.val)
		}
	}
	if u.empty() {
		return nil
	}
	err := u.exec(ctx, r.db, "content", id, content.ErrNotFound)
	if err != nil && !errors.Is(err, content.ErrNotFound) {
		return fmt.Errorf("update content: %w", err)
	}
	return err
}

func (r *ContentRepo) Transition(ctx context.Context, id string, from []domain.ContentStatus, next domain.ContentStatus, f content.TransitionFields) error {
	states := make([]string, len(from))
	for i, s := range from {
		states[i] = string(s)
	}
	var published sql.NullTime
	if f.PublishedAt != nil {
		published = sql.NullTime{Time: *f.PublishedAt, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE content
		SET status = $1,
		    ai_verdict = CASE WHEN $2 <> '' THEN $2 ELSE ai_verdict END,
		    ai_reason = CASE WHEN $3 <> '' THEN $3 ELSE ai_reason END,
		    moderation_note = CASE WHEN $4 <> '' THEN $4 ELSE moderation_note END,
		    moderated_by = COALESCE($5, moderated_by),
		    published_at = COALESCE($6, published_at),
		    updated_at = NOW()
		WHERE id = $7 AND status = ANY($8)
	`, next, f.AIVerdict, f.AIReason, f.ModerationNote, nullString(f.ModeratedBy), published, id, pq.Array(states))
	if err != nil {
		return fmt.Errorf("transition content: %w", err)
	}
	return affected(res, content.ErrInvalidTransition)
}

func (r *ContentRepo) Slugs(ctx context.Context, base string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT slug FROM content WHERE slug = $1 OR slug ~ $2
	`, base, "^"+regexp.QuoteMeta(base)+`-[0-9]+$`)
	if err != nil {
		return nil, fmt.Errorf("list slugs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan slug: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ContentRepo) FeedSources(ctx context.Context) ([]content.FeedSource, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.news_feed_url, u.id
		FROM companies c
		JOIN LATERAL (
			SELECT id FROM users
			WHERE company_id = c.id AND role = 'COMPANY' AND active
			ORDER BY created_at LIMIT 1
		) u ON TRUE
		WHERE c.status = 'ACTIVE' AND c.news_feed_url <> ''
	`)
	if err != nil {
		return nil, fmt.Errorf("list feed sources: %w", err)
	}
	defer rows.Close()

	var out []content.FeedSource
	for rows.Next() {
		var s content.FeedSource
		if err := rows.Scan(&s.CompanyID, &s.URL, &s.AuthorID); err != nil {
			return nil, fmt.Errorf("scan feed source: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
