// Package mailer renders transactional emails from Liquid templates and
// delivers them through SES, either inline or via an SQS queue drained by
// the worker.
package mailer

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/osteele/liquid"
)

//go:embed templates/*.liquid
var templateFS embed.FS

// ErrUnknownTemplate is returned for a template name with no source.
var ErrUnknownTemplate = errors.New("unknown email template")

const subjectSeparator = "\n---\n"

type parsedTemplate struct {
	subject *liquid.Template
	body    *liquid.Template
}

// Renderer turns a template name and data into a subject and HTML body.
type Renderer struct {
	engine    *liquid.Engine
	templates map[string]parsedTemplate
	baseURL   string
}

// NewRenderer parses every embedded template. baseURL is exposed to
// templates as base_url.
func NewRenderer(baseURL string) (*Renderer, error) {
	r := &Renderer{
		engine:    liquid.NewEngine(),
		templates: make(map[string]parsedTemplate),
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
	registerFilters(r.engine)

	files, err := fs.Glob(templateFS, "templates/*.liquid")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		src, err := templateFS.ReadFile(f)
		if err != nil {
			return nil, err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(f, "templates/"), ".liquid")
		subject, body, ok := strings.Cut(string(src), subjectSeparator)
		if !ok {
			return nil, fmt.Errorf("template %s: missing subject separator", name)
		}
		var pt parsedTemplate
		if pt.subject, err = r.engine.ParseString(strings.TrimSpace(subject)); err != nil {
			return nil, fmt.Errorf("template %s subject: %w", name, err)
		}
		if pt.body, err = r.engine.ParseString(body); err != nil {
			return nil, fmt.Errorf("template %s body: %w", name, err)
		}
		r.templates[name] = pt
	}
	return r, nil
}

// Has reports whether a template is known.
func (r *Renderer) Has(name string) bool {
	_, ok := r.templates[name]
	return ok
}

// Render executes template name with data.
func (r *Renderer) Render(name string, data map[string]any) (subject, html string, err error) {
	pt, ok := r.templates[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	b := liquid.Bindings{"base_url": r.baseURL}
	for k, v := range data {
		b[k] = v
	}
	subject, serr := pt.subject.RenderString(b)
	if serr != nil {
		return "", "", fmt.Errorf("render %s subject: %w", name, serr)
	}
	html, herr := pt.body.RenderString(b)
	if herr != nil {
		return "", "", fmt.Errorf("render %s body: %w", name, herr)
	}
	return strings.TrimSpace(subject), html, nil
}

var madrid = mustLocation("Europe/Madrid")

func mustLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

func registerFilters(e *liquid.Engine) {
	// {{ name | default: "usuari" }}
	e.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		if s := fmt.Sprintf("%v", value); s == "" || s == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ price_cents | euros }} -> 1.234,50 €
	e.RegisterFilter("euros", func(value interface{}) string {
		cents, ok := toCents(value)
		if !ok {
			return fmt.Sprintf("%v", value)
		}
		return FormatEuros(cents)
	})

	// {{ expires_at | date: "02/01/2006" }}; Go layout, Madrid time
	e.RegisterFilter("date", func(value interface{}, layout func(string) string) string {
		t, ok := toTime(value)
		if !ok {
			return fmt.Sprintf("%v", value)
		}
		return t.In(madrid).Format(layout("02/01/2006"))
	})
}

// FormatEuros renders cents with Catalan separators.
func FormatEuros(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s%s,%02d €", sign, b.String(), cents%100)
}

func toCents(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case float64:
		return int64(math.Round(n)), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	}
	return time.Time{}, false
}
