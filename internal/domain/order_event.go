package domain

import "time"

const (
	EventOrderCreated  = "order.created"
	EventOrderCanceled = "order.canceled"
)

type OrderEvent struct {
	OrderID    int64       `json:"orderId"`
	UserID     int64       `json:"userId"`
	Status     OrderStatus `json:"status"`
	CostAmount float64     `json:"costAmount"`
	OccurredAt time.Time   `json:"occurredAt"`
}
