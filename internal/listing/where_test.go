package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWhere(t *testing.T) {
	var w Where
	assert.Equal(t, "", w.SQL())

	w.And("is_disabled = " + w.Arg(false))
	p := w.Arg("%kit%")
	w.And("(name ILIKE " + p + " OR description ILIKE " + p + ")")

	assert.Equal(t, "WHERE is_disabled = $1 AND (name ILIKE $2 OR description ILIKE $2)", w.SQL())
	assert.Equal(t, []any{false, "%kit%"}, w.Args())
}

func TestContainsPattern(t *testing.T) {
	assert.Equal(t, "%keg%", ContainsPattern("keg"))
	assert.Equal(t, `%50\%\_off%`, ContainsPattern("50%_off"))
}
