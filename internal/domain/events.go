package domain

import "time"

const (
	TopicOrderCompleted  = "order.completed"
	TopicProductDisabled = "product.disabled"
)

type RestockedItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type OrderCompletedEvent struct {
	OrderID    int64           `json:"order_id"`
	OrderDate  Date            `json:"order_date"`
	TotalPrice Money           `json:"total_price"`
	Items      []RestockedItem `json:"items"`
	Timestamp  time.Time       `json:"timestamp"`
}

type ProductDisabledEvent struct {
	ProductID        int64     `json:"product_id"`
	Name             string    `json:"name"`
	AffectedOrderIDs []int64   `json:"affected_order_ids"`
	Timestamp        time.Time `json:"timestamp"`
}
