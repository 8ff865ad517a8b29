package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errLeadMissing = NotFound("lead not found")

func TestKindOf_WrappedSentinel(t *testing.T) {
	err := fmt.Errorf("load lead: %w", errLeadMissing)

	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "lead not found", Message(err))
	assert.True(t, errors.Is(err, errLeadMissing))
}

func TestKindOf_Unclassified(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, "", Message(errors.New("boom")))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestConstructors(t *testing.T) {
	cases := map[Kind]error{
		KindForbidden:    Forbidden("x"),
		KindConflict:     Conflict("x"),
		KindInvalid:      Invalid("x"),
		KindUnauthorized: Unauthorized("x"),
	}
	for want, err := range cases {
		assert.Equal(t, want, KindOf(err))
	}
}
