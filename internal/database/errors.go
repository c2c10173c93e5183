package database

import (
	"errors"
	"strings"

	"github.com/lib/pq"

	"github.com/joao-fontenele/caicara-stock/internal/domain"
)

const (
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNumericOutOfRange   = "22003"
	codeSerialization       = "40001"
	codeDeadlockDetected    = "40P01"
)

// TranslateError maps PostgreSQL constraint errors onto the domain taxonomy.
// Other errors are returned unchanged.
func TranslateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case codeForeignKeyViolation:
		return domain.NewConflictError(foreignKeyReason(pqErr), err)
	case codeCheckViolation:
		return domain.NewValidationError(checkField(pqErr), "value violates constraint "+pqErr.Constraint)
	case codeNumericOutOfRange:
		return domain.NewValidationError(outOfRangeField(pqErr), "value out of range")
	case codeSerialization, codeDeadlockDetected:
		return domain.NewConflictError("concurrent update, retry the request", err)
	default:
		return err
	}
}

func foreignKeyReason(pqErr *pq.Error) string {
	switch pqErr.Table {
	case "order_items":
		if pqErr.Constraint == "order_items_product_id_fkey" {
			return "referenced product does not exist"
		}
		return "referenced order does not exist"
	case "products":
		return "product is referenced by order items"
	default:
		return "foreign key violation on " + pqErr.Table
	}
}

func checkField(pqErr *pq.Error) string {
	if pqErr.Column != "" {
		return pqErr.Column
	}
	return pqErr.Table
}

// outOfRangeField tells the INTEGER quantity columns apart from the NUMERIC
// money columns; PostgreSQL does not report a column for 22003.
func outOfRangeField(pqErr *pq.Error) string {
	if pqErr.Column != "" {
		return pqErr.Column
	}
	if strings.Contains(pqErr.Message, "integer out of range") {
		return "quantity"
	}
	return "price"
}
