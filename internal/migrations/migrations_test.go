package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(FS, "sql")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

func TestInitialSchemaHasConstraintNames(t *testing.T) {
	b, err := fs.ReadFile(FS, "sql/000001_init.up.sql")
	require.NoError(t, err)
	schema := string(b)

	// Repositories map these names to domain errors.
	for _, name := range []string{"coupons_code_key", "coupons_one_active_idx", "content_slug_key", "content_source_url_key"} {
		assert.Contains(t, schema, name)
	}
}
