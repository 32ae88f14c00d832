package http

import (
	"time"

	"github.com/MAOQIZHANG/orders/internal/domain"
)

type CreateOrderRequest struct {
	Name       string              `json:"name"`
	CreateTime *time.Time          `json:"create_time"`
	Address    string              `json:"address"`
	CostAmount float64             `json:"cost_amount"`
	Status     string              `json:"status"`
	UserID     int64               `json:"user_id"`
	Items      []CreateItemRequest `json:"items"`
}

func (r CreateOrderRequest) toDomain() (*domain.Order, error) {
	order := &domain.Order{
		Name:       r.Name,
		Address:    r.Address,
		CostAmount: r.CostAmount,
		UserID:     r.UserID,
		Status:     domain.OrderStatus(r.Status),
		Items:      make([]domain.Item, 0, len(r.Items)),
	}
	if r.CreateTime != nil {
		order.CreateTime = *r.CreateTime
	}
	for _, it := range r.Items {
		item, err := it.toDomain()
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, *item)
	}
	return order, nil
}

type CreateItemRequest struct {
	Title     string  `json:"title"`
	Amount    int64   `json:"amount"`
	Price     float64 `json:"price"`
	ProductID string  `json:"product_id"`
	Status    string  `json:"status"`
}

func (r CreateItemRequest) toDomain() (*domain.Item, error) {
	item := &domain.Item{
		Title:     r.Title,
		Amount:    r.Amount,
		Price:     r.Price,
		ProductID: r.ProductID,
	}
	if r.Status != "" {
		status, err := domain.ParseItemStatus(r.Status)
		if err != nil {
			return nil, err
		}
		item.Status = status
	}
	return item, nil
}

// UpdateOrderRequest is a PATCH-style body: only fields present in the
// JSON are applied.
type UpdateOrderRequest struct {
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Status  *string `json:"status"`
}

func (r UpdateOrderRequest) toPatch() (domain.OrderPatch, error) {
	patch := domain.OrderPatch{Name: r.Name, Address: r.Address}
	if r.Status != nil {
		status, err := domain.ParseOrderStatus(*r.Status)
		if err != nil {
			return domain.OrderPatch{}, err
		}
		patch.Status = &status
	}
	return patch, nil
}

type UpdateItemRequest struct {
	Title  *string `json:"title"`
	Amount *int64  `json:"amount"`
	Status *string `json:"status"`
}

func (r UpdateItemRequest) toPatch() (domain.ItemPatch, error) {
	patch := domain.ItemPatch{Title: r.Title, Amount: r.Amount}
	if r.Status != nil {
		status, err := domain.ParseItemStatus(*r.Status)
		if err != nil {
			return domain.ItemPatch{}, err
		}
		patch.Status = &status
	}
	return patch, nil
}
