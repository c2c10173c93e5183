package database

import (
	"errors"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/caicara-stock/internal/domain"
)

func TestTranslateError(t *testing.T) {
	t.Run("product purge blocked by order items", func(t *testing.T) {
		err := TranslateError(&pq.Error{Code: codeForeignKeyViolation, Table: "products"})
		assert.True(t, domain.IsConflictError(err))
		assert.Contains(t, err.Error(), "product is referenced by order items")
	})

	t.Run("unknown product on order item insert", func(t *testing.T) {
		err := TranslateError(&pq.Error{
			Code:       codeForeignKeyViolation,
			Table:      "order_items",
			Constraint: "order_items_product_id_fkey",
		})
		assert.True(t, domain.IsConflictError(err))
		assert.Contains(t, err.Error(), "referenced product does not exist")
	})

	t.Run("check violation is a validation error", func(t *testing.T) {
		err := TranslateError(&pq.Error{Code: codeCheckViolation, Table: "products", Constraint: "products_quantity_check"})
		assert.True(t, domain.IsValidationError(err))
	})

	t.Run("integer overflow is reported on quantity", func(t *testing.T) {
		err := TranslateError(&pq.Error{Code: codeNumericOutOfRange, Message: "integer out of range"})
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "quantity")
		assert.NotContains(t, ve.Fields, "price")
	})

	t.Run("numeric overflow is reported on price", func(t *testing.T) {
		err := TranslateError(&pq.Error{Code: codeNumericOutOfRange, Message: "numeric field overflow"})
		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "price")
	})

	t.Run("deadlock asks the client to retry", func(t *testing.T) {
		err := TranslateError(&pq.Error{Code: codeDeadlockDetected})
		assert.True(t, domain.IsConflictError(err))
		assert.Contains(t, err.Error(), "retry")
	})

	t.Run("other errors pass through", func(t *testing.T) {
		cause := errors.New("connection reset")
		assert.Same(t, cause, TranslateError(cause))
		assert.Nil(t, TranslateError(nil))
	})
}
