package domain

import (
	"database/sql/driver"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// maxPrice is the exclusive upper bound of a numeric(10,2) column.
var maxPrice = decimal.New(1, 8)

// Money is a non-float amount with two decimal places, the unit used for
// product prices, item price snapshots and order totals.
type Money struct {
	d decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// ParsePrice parses a user supplied price. Both "," and "." are accepted as the
// decimal separator; the result must be finite, non-negative and fit numeric(10,2).
func ParsePrice(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, NewValidationError("price", "price is required")
	}

	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return Money{}, NewValidationError("price", "price must be a valid number")
	}
	if d.IsNegative() {
		return Money{}, NewValidationError("price", "price must be non-negative")
	}

	d = d.Round(2)
	if d.GreaterThanOrEqual(maxPrice) {
		return Money{}, NewValidationError("price", "price must be less than 100000000")
	}

	return Money{d: d}, nil
}

// ParseQuantity parses a non-negative integer quantity string that fits an
// INTEGER column.
func ParseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, NewValidationError("quantity", "quantity is required")
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, NewValidationError("quantity", "quantity must be an integer")
	}
	if n < 0 {
		return 0, NewValidationError("quantity", "quantity must be non-negative")
	}
	if n > math.MaxInt32 {
		return 0, NewValidationError("quantity", "quantity must be at most 2147483647")
	}

	return n, nil
}

func (m Money) Add(other Money) Money {
	return Money{d: m.d.Add(other.d)}
}

// Times returns the line total for quantity units at price m.
func (m Money) Times(quantity int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(quantity)))}
}

func (m Money) Equal(other Money) bool {
	return m.d.Equal(other.d)
}

func (m Money) IsZero() bool {
	return m.d.IsZero()
}

func (m Money) Decimal() decimal.Decimal {
	return m.d
}

// String renders the amount with exactly two decimals, e.g. "9.90".
func (m Money) String() string {
	return m.d.StringFixed(2)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(m.String())), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(s); err == nil {
		s = unquoted
	}

	parsed, err := ParsePrice(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	m.d = d.Round(2)
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// SumLines returns Σ price × quantity over the given items.
func SumLines(items []OrderItem) Money {
	total := Money{}
	for _, item := range items {
		total = total.Add(item.Price.Times(item.Quantity))
	}
	return total
}
