package domain

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

const errOrderClosed = "order already completed or cancelled"

func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return OrderStatus(s), nil
	default:
		return "", NewValidationError("status", fmt.Sprintf("unknown order status %q", s))
	}
}

// Mutable reports whether line items may still be added, changed or removed.
func (s OrderStatus) Mutable() bool {
	return s == OrderStatusPending
}

// RequireMutable returns an InvalidStateError unless the order is pending.
func (s OrderStatus) RequireMutable(orderID int64) error {
	if !s.Mutable() {
		return NewInvalidStateError("order", orderID, string(s), errOrderClosed)
	}
	return nil
}

// Complete is the pending -> completed transition.
func (s OrderStatus) Complete(orderID int64) (OrderStatus, error) {
	if err := s.RequireMutable(orderID); err != nil {
		return s, err
	}
	return OrderStatusCompleted, nil
}

// Transition validates a status change requested through an order update.
// Re-setting the current status is a no-op. Completion is only reachable
// through Complete, which restocks inventory.
func (s OrderStatus) Transition(orderID int64, next OrderStatus) (OrderStatus, error) {
	if next == s {
		return s, nil
	}
	if err := s.RequireMutable(orderID); err != nil {
		return s, err
	}
	if next == OrderStatusCompleted {
		return s, NewInvalidStateError("order", orderID, string(s), "orders are completed through the complete operation")
	}
	return next, nil
}

type Order struct {
	ID         int64       `json:"id"`
	OrderDate  Date        `json:"order_date"`
	TotalPrice Money       `json:"total_price"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Items      []OrderItem `json:"items,omitempty"`
}

type OrderItem struct {
	ID        int64            `json:"id"`
	OrderID   int64            `json:"order_id"`
	ProductID int64            `json:"product_id"`
	Quantity  int              `json:"quantity"`
	Price     Money            `json:"price"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Product   *ProductSnapshot `json:"product,omitempty"`
}

// ProductSnapshot carries the live product fields joined into an order item.
type ProductSnapshot struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Price       Money   `json:"price"`
	Quantity    int     `json:"quantity"`
}

// OrderPatch is a partial order update. Total price is never patched directly.
type OrderPatch struct {
	OrderDate *Date
	Status    *OrderStatus
}

type OrderFilter struct {
	DateFrom   *Date
	DateTo     *Date
	Descending bool
}
