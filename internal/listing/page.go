package listing

type Pagination struct {
	NextCursor *int64 `json:"next_cursor,omitempty"`
	Page       *int   `json:"page,omitempty"`
	Limit      *int   `json:"limit,omitempty"`
	Total      *int64 `json:"total,omitempty"`
	TotalPages *int   `json:"total_pages,omitempty"`
	HasMore    *bool  `json:"has_more,omitempty"`
}

type Result[T any] struct {
	Items      []T        `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// CursorResult shapes rows fetched with LIMIT limit+1: the extra row only
// signals that another page exists and is dropped.
func CursorResult[T any](rows []T, limit int, idOf func(T) int64) Result[T] {
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	var next *int64
	if hasMore && len(rows) > 0 {
		id := idOf(rows[len(rows)-1])
		next = &id
	}

	return Result[T]{
		Items:      nonNil(rows),
		Pagination: Pagination{NextCursor: next, HasMore: &hasMore},
	}
}

func PageResult[T any](rows []T, page, limit int, total int64) Result[T] {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	hasMore := page < totalPages

	return Result[T]{
		Items: nonNil(rows),
		Pagination: Pagination{
			Page:       &page,
			Limit:      &limit,
			Total:      &total,
			TotalPages: &totalPages,
			HasMore:    &hasMore,
		},
	}
}

func FullResult[T any](rows []T) Result[T] {
	return Result[T]{Items: nonNil(rows)}
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
