// Package listing holds the pagination rules shared by the catalog and
// orders listings: mode resolution, result shaping and WHERE building.
package listing

import (
	"math"
	"net/url"
	"strconv"

	"github.com/joao-fontenele/caicara-stock/internal/domain"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Mode int

const (
	ModeFull Mode = iota
	ModeCursor
	ModePage
)

func (m Mode) String() string {
	switch m {
	case ModeCursor:
		return "cursor"
	case ModePage:
		return "page"
	default:
		return "full"
	}
}

// Params are the pagination inputs of a list request. Cursor takes
// precedence when both Cursor and Page are set.
type Params struct {
	Cursor *int64
	Page   *int
	Limit  int
}

func (p Params) Mode() Mode {
	switch {
	case p.Cursor != nil:
		return ModeCursor
	case p.Page != nil:
		return ModePage
	default:
		return ModeFull
	}
}

func (p Params) Offset() int {
	if p.Page == nil {
		return 0
	}
	return (*p.Page - 1) * p.Limit
}

func (p Params) Validate() error {
	if p.Limit < 1 || p.Limit > MaxLimit {
		return domain.NewValidationError("limit", "limit must be between 1 and 100")
	}
	if p.Cursor != nil && *p.Cursor < 0 {
		return domain.NewValidationError("cursor", "cursor must be non-negative")
	}
	if p.Page != nil && *p.Page < 1 {
		return domain.NewValidationError("page", "page must be greater than 0")
	}
	if p.Page != nil && *p.Page-1 > math.MaxInt/p.Limit {
		return domain.NewValidationError("page", "page is out of range")
	}
	return nil
}

// ParseParams reads cursor, page and limit from a query string. A cursor of 0
// starts a cursor scan from the beginning.
func ParseParams(q url.Values) (Params, error) {
	p := Params{Limit: DefaultLimit}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, domain.NewValidationError("limit", "limit must be an integer")
		}
		p.Limit = n
	}

	if raw := q.Get("cursor"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return p, domain.NewValidationError("cursor", "cursor must be an integer")
		}
		p.Cursor = &n
	}

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return p, domain.NewValidationError("page", "page must be an integer")
		}
		p.Page = &n
	}

	return p, p.Validate()
}
