// Package feeds downloads company news feeds (RSS, Atom, JSON Feed) for
// import as blog drafts.
package feeds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/lapublica/platform/internal/pkg/httpretry"
	"github.com/lapublica/platform/internal/service/content"
)

const (
	maxFeedBytes = 5 << 20
	maxItems     = 20
	userAgent    = "LaPublica-FeedImporter/1.0"
)

// Fetcher implements content.Fetcher over a retrying HTTP client.
type Fetcher struct {
	http   httpretry.Doer
	parser *gofeed.Parser
}

// NewFetcher creates a fetcher. A nil doer gets the default retrying client.
func NewFetcher(doer httpretry.Doer) *Fetcher {
	if doer == nil {
		doer = httpretry.New(nil, httpretry.Options{})
	}
	return &Fetcher{http: doer, parser: gofeed.NewParser()}
}

// Fetch returns up to the newest items of the feed at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]content.FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.5")

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}

	feed, err := f.parser.Parse(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]content.FeedItem, 0, min(len(feed.Items), maxItems))
	for _, it := range feed.Items {
		if len(items) == maxItems {
			break
		}
		items = append(items, convert(it))
	}
	return items, nil
}

func convert(it *gofeed.Item) content.FeedItem {
	fi := content.FeedItem{
		Title:   strings.TrimSpace(it.Title),
		Link:    strings.TrimSpace(it.Link),
		Summary: Text(it.Description),
		Body:    Sanitize(it.Content),
	}
	if fi.Link == "" && strings.HasPrefix(it.GUID, "http") {
		fi.Link = it.GUID
	}
	if fi.Body == "" {
		fi.Body = Sanitize(it.Description)
	}
	if fi.Summary == "" {
		fi.Summary = Text(it.Content)
	}

	switch {
	case it.PublishedParsed != nil:
		fi.Published = it.PublishedParsed
	case it.UpdatedParsed != nil:
		fi.Published = it.UpdatedParsed
	}

	if it.Image != nil {
		fi.ImageURL = it.Image.URL
	} else {
		for _, enc := range it.Enclosures {
			if strings.HasPrefix(enc.Type, "image/") {
				fi.ImageURL = enc.URL
				break
			}
		}
	}
	return fi
}

// Text flattens an HTML fragment to whitespace-normalised text.
func Text(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.Join(strings.Fields(fragment), " ")
	}
	doc.Find("script, style").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// Sanitize drops active content from an HTML fragment and returns the rest.
func Sanitize(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	doc.Find("script, style, iframe, object, embed, form").Remove()
	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		for _, n := range s.Nodes {
			attrs := n.Attr[:0]
			for _, a := range n.Attr {
				key := strings.ToLower(a.Key)
				val := strings.ToLower(strings.TrimSpace(a.Val))
				if strings.HasPrefix(key, "on") || strings.HasPrefix(val, "javascript:") {
					continue
				}
				attrs = append(attrs, a)
			}
			n.Attr = attrs
		}
	})
	html, err := doc.Find("body").Html()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(html)
}
