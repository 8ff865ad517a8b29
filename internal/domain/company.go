package domain

import (
	"strconv"
	"strings"
	"time"
)

// CompanyStatus is the onboarding state of a partner company.
type CompanyStatus string

const (
	CompanyPending   CompanyStatus = "PENDING"
	CompanyActive    CompanyStatus = "ACTIVE"
	CompanySuspended CompanyStatus = "SUSPENDED"
)

// Valid reports whether s is a known status.
func (s CompanyStatus) Valid() bool {
	return s == CompanyPending || s == CompanyActive || s == CompanySuspended
}

// Company is a partner company that publishes offers.
type Company struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	CIF           string        `json:"cif"`
	Email         string        `json:"email"`
	Phone         string        `json:"phone,omitempty"`
	Website       string        `json:"website,omitempty"`
	Description   string        `json:"description,omitempty"`
	Sector        string        `json:"sector,omitempty"`
	Address       string        `json:"address,omitempty"`
	City          string        `json:"city,omitempty"`
	LogoURL       string        `json:"logo_url,omitempty"`
	LogoKey       string        `json:"-"`
	NewsFeedURL   string        `json:"news_feed_url,omitempty"`
	Status        CompanyStatus `json:"status"`
	GestorID      *string       `json:"gestor_id,omitempty"`
	PlanID        *string       `json:"plan_id,omitempty"`
	PlanStartedAt *time.Time    `json:"plan_started_at,omitempty"`
	PlanRenewsAt  *time.Time    `json:"plan_renews_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// HasGestor reports whether the company is in some gestor's portfolio.
func (c *Company) HasGestor() bool {
	return c.GestorID != nil && *c.GestorID != ""
}

// ManagedBy reports whether gestorID owns the company.
func (c *Company) ManagedBy(gestorID string) bool {
	return c.HasGestor() && *c.GestorID == gestorID
}

const (
	cifOrgLetters    = "ABCDEFGHJKLMNPQRSUVW"
	cifControlLetter = "JABCDEFGHI"
	nifLetters       = "TRWAGMYFPDXBNJZSQVHLCKE"
)

// NormalizeTaxID upper-cases and strips spaces, dots and dashes.
func NormalizeTaxID(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.':
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(s)))
}

// ValidCIF accepts only a Spanish CIF, the tax id of a legal entity.
// The input must already be normalized.
func ValidCIF(s string) bool {
	return len(s) == 9 && strings.ContainsRune(cifOrgLetters, rune(s[0])) && validCIF(s)
}

// ValidTaxID accepts a Spanish CIF, or a NIF/NIE for sole traders.
// The input must already be normalized.
func ValidTaxID(s string) bool {
	if len(s) != 9 {
		return false
	}
	switch {
	case strings.ContainsRune(cifOrgLetters, rune(s[0])):
		return validCIF(s)
	case s[0] >= '0' && s[0] <= '9':
		return validNIF(s)
	case s[0] == 'X' || s[0] == 'Y' || s[0] == 'Z':
		return validNIF(string(rune('0'+strings.IndexByte("XYZ", s[0]))) + s[1:])
	}
	return false
}

func validCIF(s string) bool {
	digits := s[1:8]
	sum := 0
	for i := 0; i < 7; i++ {
		d := digits[i]
		if d < '0' || d > '9' {
			return false
		}
		n := int(d - '0')
		if i%2 == 0 {
			n *= 2
			n = n/10 + n%10
		}
		sum += n
	}
	ctrl := (10 - sum%10) % 10
	digitCtrl := byte('0' + ctrl)
	letterCtrl := cifControlLetter[ctrl]

	last := s[8]
	switch s[0] {
	case 'K', 'P', 'Q', 'S', 'N', 'W':
		return last == letterCtrl
	case 'A', 'B', 'E', 'H':
		return last == digitCtrl
	}
	return last == digitCtrl || last == letterCtrl
}

func validNIF(s string) bool {
	n, err := strconv.Atoi(s[:8])
	if err != nil {
		return false
	}
	return s[8] == nifLetters[n%23]
}
