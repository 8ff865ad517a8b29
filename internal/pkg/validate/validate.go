// Package validate collects field-level input errors. Handlers return the
// collected map as the "details" of a 400 response.
package validate

import (
	"net/mail"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Errors maps a JSON field name to a human-readable message.
type Errors map[string]string

// Error implements error with a stable, sorted rendering.
func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has an error.
func (e Errors) Add(field, msg string) {
	if _, ok := e[field]; !ok {
		e[field] = msg
	}
}

// Err returns nil when nothing was recorded.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Required records an error when value is blank.
func (e Errors) Required(field, value string) bool {
	if strings.TrimSpace(value) == "" {
		e.Add(field, "is required")
		return false
	}
	return true
}

// Length records an error when value's rune count is outside [min, max].
func (e Errors) Length(field, value string, min, max int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < min || (max > 0 && n > max) {
		if max > 0 {
			e.Add(field, "must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max)+" characters")
		} else {
			e.Add(field, "must be at least "+strconv.Itoa(min)+" characters")
		}
		return false
	}
	return true
}

// Email records an error when value is not a bare email address.
func (e Errors) Email(field, value string) bool {
	if !IsEmail(value) {
		e.Add(field, "must be a valid email address")
		return false
	}
	return true
}

// IsEmail reports whether s is a bare address such as "ana@example.cat".
func IsEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s {
		return false
	}
	return strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}

var phoneRe = regexp.MustCompile(`^\+?[0-9 ]{9,15}$`)

// Phone records an error when a non-empty value is not a plausible phone number.
func (e Errors) Phone(field, value string) bool {
	if value == "" {
		return true
	}
	if !phoneRe.MatchString(value) {
		e.Add(field, "must be a valid phone number")
		return false
	}
	return true
}
