package listing

import (
	"math"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/caicara-stock/internal/domain"
)

func TestParseParams(t *testing.T) {
	t.Run("defaults to full scan", func(t *testing.T) {
		p, err := ParseParams(url.Values{})
		require.NoError(t, err)
		assert.Equal(t, ModeFull, p.Mode())
		assert.Equal(t, DefaultLimit, p.Limit)
	})

	t.Run("cursor zero starts a cursor scan", func(t *testing.T) {
		p, err := ParseParams(url.Values{"cursor": {"0"}, "limit": {"5"}})
		require.NoError(t, err)
		assert.Equal(t, ModeCursor, p.Mode())
		assert.Equal(t, int64(0), *p.Cursor)
		assert.Equal(t, 5, p.Limit)
	})

	t.Run("cursor wins over page", func(t *testing.T) {
		p, err := ParseParams(url.Values{"cursor": {"12"}, "page": {"3"}})
		require.NoError(t, err)
		assert.Equal(t, ModeCursor, p.Mode())
	})

	t.Run("page offset", func(t *testing.T) {
		p, err := ParseParams(url.Values{"page": {"3"}, "limit": {"20"}})
		require.NoError(t, err)
		assert.Equal(t, ModePage, p.Mode())
		assert.Equal(t, 40, p.Offset())
	})

	t.Run("largest accepted page keeps a non-negative offset", func(t *testing.T) {
		page := math.MaxInt/MaxLimit + 1
		p := Params{Page: &page, Limit: MaxLimit}
		require.NoError(t, p.Validate())
		assert.GreaterOrEqual(t, p.Offset(), 0)

		next := *p.Page + 1
		p.Page = &next
		assert.True(t, domain.IsValidationError(p.Validate()))
	})

	for name, q := range map[string]url.Values{
		"limit too large":       {"limit": {"101"}},
		"limit zero":            {"limit": {"0"}},
		"page zero":             {"page": {"0"}},
		"negative cursor":       {"cursor": {"-1"}},
		"non numeric page":      {"page": {"two"}},
		"page overflows offset": {"page": {"9223372036854775807"}, "limit": {"100"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseParams(q)
			assert.True(t, domain.IsValidationError(err), "expected ValidationError, got %v", err)
		})
	}
}
