package repository

import (
	"context"

	"github.com/MAOQIZHANG/orders/internal/domain"
)

// Filter selects orders by any conjunction of the four optional
// predicates. Nil fields do not constrain the result.
type Filter struct {
	OrderID *int64
	UserID  *int64
	Status  *domain.OrderStatus
	Name    *string
}

// Empty reports whether no predicate is set.
func (f Filter) Empty() bool {
	return f.OrderID == nil && f.UserID == nil && f.Status == nil && f.Name == nil
}

// OrderRepository is the persistence gateway for the order aggregate.
// Lookups return (nil, nil) when the row is absent; callers decide whether
// absence is an error. Every mutating call is atomic, and DeleteOrder
// cascades to the order's items.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	FindOrderByID(ctx context.Context, id int64) (*domain.Order, error)
	FindOrders(ctx context.Context, f Filter) ([]domain.Order, error)
	SaveOrder(ctx context.Context, order *domain.Order) error
	DeleteOrder(ctx context.Context, id int64) error

	CreateItem(ctx context.Context, item *domain.Item) error
	FindItemByID(ctx context.Context, id int64) (*domain.Item, error)
	FindItemsByOrder(ctx context.Context, orderID int64) ([]domain.Item, error)
	// SaveItemAndOrder persists an item mutation together with the cost
	// ledger change on its owning order in a single transaction.
	SaveItemAndOrder(ctx context.Context, item *domain.Item, order *domain.Order) error
	DeleteItem(ctx context.Context, id int64) error
}
