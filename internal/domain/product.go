package domain

import (
	"fmt"
	"time"
)

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusDisabled ProductStatus = "disabled"
)

// ProductStatusOf maps the persisted is_disabled flag to a status.
func ProductStatusOf(disabled bool) ProductStatus {
	if disabled {
		return ProductStatusDisabled
	}
	return ProductStatusActive
}

func (s ProductStatus) Disabled() bool {
	return s == ProductStatusDisabled
}

// ProductFilter selects which partition of the catalog a listing scans.
type ProductFilter string

const (
	ProductFilterActive   ProductFilter = "active"
	ProductFilterDisabled ProductFilter = "disabled"
	ProductFilterAll      ProductFilter = "all"
)

func ParseProductFilter(s string) (ProductFilter, error) {
	switch ProductFilter(s) {
	case "":
		return ProductFilterActive, nil
	case ProductFilterActive, ProductFilterDisabled, ProductFilterAll:
		return ProductFilter(s), nil
	default:
		return "", NewValidationError("status", fmt.Sprintf("unknown status %q", s))
	}
}

type Product struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Description *string       `json:"description"`
	Price       Money         `json:"price"`
	Quantity    int           `json:"quantity"`
	Status      ProductStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProductPatch is a partial update; nil fields are left untouched.
type ProductPatch struct {
	Name           *string
	Description    *string
	SetDescription bool
	Price          *Money
	Quantity       *int
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && !p.SetDescription && p.Price == nil && p.Quantity == nil
}

// StockLevel is the result of a manual quantity adjustment.
type StockLevel struct {
	ProductID int64 `json:"id"`
	Quantity  int   `json:"quantity"`
}
