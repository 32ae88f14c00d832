package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/MAOQIZHANG/orders/internal/domain"
	"github.com/MAOQIZHANG/orders/internal/repository"
)

// orderRepo is an in-memory OrderRepository for local development and
// tests. The single mutex makes each call atomic; it does not serialize
// read-modify-write sequences spanning multiple calls.
type orderRepo struct {
	mu        sync.RWMutex
	orders    map[int64]domain.Order
	items     map[int64]domain.Item
	nextOrder int64
	nextItem  int64
}

func NewOrderRepository() repository.OrderRepository {
	return &orderRepo{
		orders:    make(map[int64]domain.Order),
		items:     make(map[int64]domain.Item),
		nextOrder: 1,
		nextItem:  1,
	}
}

func (r *orderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order.ID = r.nextOrder
	r.nextOrder++

	stored := *order
	stored.Items = nil
	r.orders[order.ID] = stored

	for i := range order.Items {
		order.Items[i].ID = r.nextItem
		r.nextItem++
		order.Items[i].OrderID = order.ID
		r.items[order.Items[i].ID] = order.Items[i]
	}
	if order.Items == nil {
		order.Items = []domain.Item{}
	}
	return nil
}

func (r *orderRepo) FindOrderByID(ctx context.Context, id int64) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	order.Items = r.itemsOfLocked(id)
	return &order, nil
}

func (r *orderRepo) FindOrders(ctx context.Context, f repository.Filter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if !f.Empty() && !matchFilter(order, f) {
			continue
		}
		order.Items = r.itemsOfLocked(order.ID)
		out = append(out, order)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchFilter(order domain.Order, f repository.Filter) bool {
	if f.OrderID != nil && order.ID != *f.OrderID {
		return false
	}
	if f.UserID != nil && order.UserID != *f.UserID {
		return false
	}
	if f.Status != nil && order.Status != *f.Status {
		return false
	}
	if f.Name != nil && order.Name != *f.Name {
		return false
	}
	return true
}

func (r *orderRepo) SaveOrder(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	stored := *order
	stored.Items = nil
	r.orders[order.ID] = stored
	return nil
}

func (r *orderRepo) DeleteOrder(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.orders, id)
	for itemID, it := range r.items {
		if it.OrderID == id {
			delete(r.items, itemID)
		}
	}
	return nil
}

func (r *orderRepo) CreateItem(ctx context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item.ID = r.nextItem
	r.nextItem++
	r.items[item.ID] = *item
	return nil
}

func (r *orderRepo) FindItemByID(ctx context.Context, id int64) (*domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	it, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &it, nil
}

func (r *orderRepo) FindItemsByOrder(ctx context.Context, orderID int64) ([]domain.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.itemsOfLocked(orderID), nil
}

func (r *orderRepo) SaveItemAndOrder(ctx context.Context, item *domain.Item, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; !ok {
		return domain.ErrOrderNotFound
	}
	if _, ok := r.items[item.ID]; !ok {
		return domain.ErrItemNotFound
	}
	r.items[item.ID] = *item
	stored := *order
	stored.Items = nil
	r.orders[order.ID] = stored
	return nil
}

func (r *orderRepo) DeleteItem(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, id)
	return nil
}

// itemsOfLocked collects the order's items in id order. Callers hold the lock.
func (r *orderRepo) itemsOfLocked(orderID int64) []domain.Item {
	out := []domain.Item{}
	for _, it := range r.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
