package domain

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	StatusNew       OrderStatus = "NEW"
	StatusPending   OrderStatus = "PENDING"
	StatusApproved  OrderStatus = "APPROVED"
	StatusShipped   OrderStatus = "SHIPPED"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCanceled  OrderStatus = "CANCELED"
)

// ParseOrderStatus maps a symbolic status name to its enum value.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case StatusNew, StatusPending, StatusApproved, StatusShipped, StatusDelivered, StatusCanceled:
		return OrderStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown order status %q", ErrValidation, s)
}

type ItemStatus string

const (
	ItemStatusAdded      ItemStatus = "ADDED"
	ItemStatusInStock    ItemStatus = "INSTOCK"
	ItemStatusLowStock   ItemStatus = "LOWSTOCK"
	ItemStatusOutOfStock ItemStatus = "OUTOFSTOCK"
)

func ParseItemStatus(s string) (ItemStatus, error) {
	switch ItemStatus(s) {
	case ItemStatusAdded, ItemStatusInStock, ItemStatusLowStock, ItemStatusOutOfStock:
		return ItemStatus(s), nil
	}
	return "", fmt.Errorf("%w: unknown item status %q", ErrValidation, s)
}

// Order is a customer purchase record owning zero or more Items. The order
// and its items form one consistency boundary: items are created under an
// order and are removed together with it.
type Order struct {
	ID         int64       `json:"id" gorm:"primaryKey;autoIncrement"`
	Name       string      `json:"name" gorm:"type:varchar(63)"`
	CreateTime time.Time   `json:"create_time"`
	Address    string      `json:"address" gorm:"type:varchar(255);not null"`
	CostAmount float64     `json:"cost_amount" gorm:"not null"`
	Status     OrderStatus `json:"status" gorm:"type:varchar(20);not null;index"`
	UserID     int64       `json:"user_id" gorm:"not null;index"`
	Items      []Item      `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

type Item struct {
	ID      int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID int64   `json:"order_id" gorm:"not null;index"`
	Title   string  `json:"title" gorm:"type:varchar(255);not null"`
	Amount  int64   `json:"amount" gorm:"not null"`
	Price   float64 `json:"price" gorm:"not null"`
	// ProductID is the external product serial number, not a database key.
	ProductID string     `json:"product_id" gorm:"type:varchar(255);not null"`
	Status    ItemStatus `json:"status" gorm:"type:varchar(20);not null"`
}

// Validate checks the required order fields before creation.
func (o *Order) Validate() error {
	if o.Address == "" {
		return ErrAddressRequired
	}
	if o.UserID <= 0 {
		return ErrUserIDRequired
	}
	if o.CostAmount < 0 {
		return ErrCostNegative
	}
	for i := range o.Items {
		if err := o.Items[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the required item fields before creation.
func (it *Item) Validate() error {
	if it.Title == "" {
		return ErrItemTitleRequired
	}
	if it.ProductID == "" {
		return ErrItemProductRequired
	}
	if it.Price < 0 {
		return ErrItemPriceInvalid
	}
	if it.Amount < 0 {
		return ErrItemAmountInvalid
	}
	return nil
}

// OrderPatch carries a partial order update. Nil fields are absent and
// leave the stored value untouched.
type OrderPatch struct {
	Name    *string
	Address *string
	Status  *OrderStatus
}

func (p OrderPatch) Apply(o *Order) error {
	if p.Name != nil {
		o.Name = *p.Name
	}
	if p.Address != nil {
		if *p.Address == "" {
			return ErrAddressRequired
		}
		o.Address = *p.Address
	}
	if p.Status != nil {
		o.Status = *p.Status
	}
	return nil
}

// ItemPatch carries a partial item update, nil meaning absent.
type ItemPatch struct {
	Title  *string
	Amount *int64
	Status *ItemStatus
}

func (p ItemPatch) Apply(it *Item) error {
	if p.Title != nil {
		if *p.Title == "" {
			return ErrItemTitleRequired
		}
		it.Title = *p.Title
	}
	if p.Amount != nil {
		if *p.Amount < 0 {
			return ErrItemAmountInvalid
		}
		it.Amount = *p.Amount
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	return nil
}

// SetAmount moves the item quantity to target and returns the cost delta
// the owning order has to absorb: (target - current) * unit price. The
// order cost is a running ledger, each call contributes its delta exactly
// once and the total is never recomputed from scratch.
func (it *Item) SetAmount(target int64) (float64, error) {
	if target < 0 {
		return 0, ErrItemAmountInvalid
	}
	delta := float64(target-it.Amount) * it.Price
	it.Amount = target
	return delta, nil
}

// IncrementAmount adds a single unit and returns the cost delta.
func (it *Item) IncrementAmount() float64 {
	it.Amount++
	return it.Price
}
