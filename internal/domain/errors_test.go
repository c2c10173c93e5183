package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHelpers(t *testing.T) {
	wrapped := fmt.Errorf("add item: %w", NewNotFoundError("product", 9))

	assert.True(t, IsNotFoundError(wrapped))
	assert.False(t, IsValidationError(wrapped))
	assert.True(t, errors.Is(wrapped, &NotFoundError{}))
	assert.Equal(t, "product not found: id=9", errors.Unwrap(wrapped).Error())
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{
		"price": "price must be non-negative",
		"name":  "name is required",
	}}
	assert.Equal(t, "validation failed: name: name is required; price: price must be non-negative", err.Error())
}

func TestConflictErrorUnwrap(t *testing.T) {
	cause := errors.New("fk violation")
	err := NewConflictError("product is referenced by orders", cause)

	assert.True(t, IsConflictError(err))
	assert.ErrorIs(t, err, cause)
}

func TestProductFilter(t *testing.T) {
	f, err := ParseProductFilter("")
	assert.NoError(t, err)
	assert.Equal(t, ProductFilterActive, f)

	_, err = ParseProductFilter("archived")
	assert.True(t, IsValidationError(err))
}
