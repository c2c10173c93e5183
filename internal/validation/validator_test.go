package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/caicara-stock/internal/domain"
)

type lineRequest struct {
	ProductID int64  `json:"productId" validate:"gt=0"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Price     Scalar `json:"price" validate:"required,price"`
}

type productRequest struct {
	Name     string        `json:"name" validate:"required,max=256"`
	Price    Scalar        `json:"price" validate:"required,price"`
	Quantity Scalar        `json:"quantity" validate:"required,quantity"`
	Status   *string       `json:"status" validate:"omitnil,order_status"`
	Day      string        `json:"day" validate:"omitempty,date"`
	Items    []lineRequest `json:"items" validate:"dive"`
}

func TestScalarUnmarshal(t *testing.T) {
	var body struct {
		A Scalar `json:"a"`
		B Scalar `json:"b"`
		C Scalar `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"9,90","b":12.5,"c":3}`), &body))

	assert.Equal(t, Scalar("9,90"), body.A)
	assert.Equal(t, Scalar("12.5"), body.B)
	assert.Equal(t, Scalar("3"), body.C)
}

func TestValidatorStruct(t *testing.T) {
	v := New()

	t.Run("valid request", func(t *testing.T) {
		status := "pending"
		req := productRequest{
			Name:     "Widget",
			Price:    "9,90",
			Quantity: "3",
			Status:   &status,
			Day:      "31/12/24",
			Items:    []lineRequest{{ProductID: 1, Quantity: 2, Price: "1.00"}},
		}
		assert.NoError(t, v.Struct(req))
	})

	t.Run("field errors use json paths", func(t *testing.T) {
		status := "shipped"
		req := productRequest{
			Price:    "-1",
			Quantity: "abc",
			Status:   &status,
			Day:      "2024-13-40",
			Items:    []lineRequest{{ProductID: 1, Quantity: 0, Price: "1"}},
		}

		err := v.Struct(req)
		require.Error(t, err)

		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "is required", ve.Fields["name"])
		assert.Contains(t, ve.Fields, "price")
		assert.Equal(t, "must be a non-negative integer", ve.Fields["quantity"])
		assert.Contains(t, ve.Fields, "status")
		assert.Contains(t, ve.Fields, "day")
		assert.Equal(t, "must be greater than 0", ve.Fields["items[0].quantity"])
	})

	t.Run("nil optional fields are skipped", func(t *testing.T) {
		req := productRequest{Name: "Widget", Price: "0", Quantity: "0"}
		assert.NoError(t, v.Struct(req))
	})

	t.Run("name longer than the column", func(t *testing.T) {
		long := make([]byte, 257)
		for i := range long {
			long[i] = 'a'
		}
		req := productRequest{Name: string(long), Price: "1", Quantity: "1"}

		var ve *domain.ValidationError
		require.ErrorAs(t, v.Struct(req), &ve)
		assert.Equal(t, "must be at most 256 characters", ve.Fields["name"])
	})
}
