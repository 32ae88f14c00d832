package services

import (
	"time"

	"github.com/MAOQIZHANG/orders/internal/domain"
)

func CreateMockOrder(id, userID int64, cost float64, status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:         id,
		Name:       "Test Recipient",
		CreateTime: time.Now(),
		Address:    "5 MetroTech Center, Brooklyn",
		CostAmount: cost,
		Status:     status,
		UserID:     userID,
		Items:      []domain.Item{},
	}
}

func CreateMockItem(id, orderID, amount int64, price float64) *domain.Item {
	return &domain.Item{
		ID:        id,
		OrderID:   orderID,
		Title:     "MacBook Pro",
		Amount:    amount,
		Price:     price,
		ProductID: "SN-1001",
		Status:    domain.ItemStatusInStock,
	}
}

const (
	TestOrderID = int64(1)
	TestItemID  = int64(1)
	TestUserID  = int64(1000)
)
