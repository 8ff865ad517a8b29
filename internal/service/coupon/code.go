package coupon

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

// codeAlphabet omits 0, O, 1 and I. Its length divides 256, so masking a
// random byte is unbiased.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

var codePattern = regexp.MustCompile(`^LP-[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`)

// NewCode draws an LP-XXXX-XXXX code from crypto/rand.
func NewCode() (string, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("coupon: read random: %w", err)
	}
	out := []byte("LP-XXXX-XXXX")
	pos := []int{3, 4, 5, 6, 8, 9, 10, 11}
	for i, p := range pos {
		out[p] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(out), nil
}

// ValidCode reports whether s has the coupon code shape.
func ValidCode(s string) bool {
	return codePattern.MatchString(s)
}
