package listing

import (
	"strconv"
	"strings"
)

// Where accumulates AND-ed conditions with positional ($n) arguments.
type Where struct {
	conds []string
	args  []any
}

// Arg registers a value and returns its placeholder.
func (w *Where) Arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *Where) And(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *Where) Args() []any {
	return w.args
}

// SQL returns the WHERE clause, or an empty string when no condition was added.
func (w *Where) SQL() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds an ILIKE pattern matching s literally anywhere.
func ContainsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
