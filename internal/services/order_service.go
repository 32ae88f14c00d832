package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MAOQIZHANG/orders/internal/domain"
	rabbit "github.com/MAOQIZHANG/orders/internal/infra/rabbitmq"
	"github.com/MAOQIZHANG/orders/internal/repository"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// editWindow is how long after creation an order may still be updated.
const editWindow = 24 * time.Hour

const orderCacheTTL = 10 * time.Second

// OrderService implements every operation on the order aggregate. All
// business rules live here; the repository only persists, the handler only
// translates HTTP.
type OrderService struct {
	repo        repository.OrderRepository
	publisher   rabbit.PublisherInterface
	redisClient *redis.Client
	now         func() time.Time
	logger      *log.Entry
}

func NewOrderService(r repository.OrderRepository, pub rabbit.PublisherInterface) *OrderService {
	return &OrderService{
		repo:      r,
		publisher: pub,
		now:       time.Now,
		logger:    log.WithField("component", "order-service"),
	}
}

func (s *OrderService) SetRedisClient(client *redis.Client) {
	s.redisClient = client
}

// SetClock overrides the service clock. Tests use it to step past the edit
// window without sleeping.
func (s *OrderService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateOrder validates the input, defaults status and creation time, and
// persists the order together with any initial items.
func (s *OrderService) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	if order.Status == "" {
		order.Status = domain.StatusNew
	} else if _, err := domain.ParseOrderStatus(string(order.Status)); err != nil {
		return nil, err
	}
	for i := range order.Items {
		if order.Items[i].Status == "" {
			order.Items[i].Status = domain.ItemStatusAdded
		}
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if order.CreateTime.IsZero() {
		order.CreateTime = s.now()
	}
	order.ID = 0

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	if order.Items == nil {
		order.Items = []domain.Item{}
	}

	s.logger.WithField("order_id", order.ID).Info("order created")
	go s.publishEvent(domain.EventOrderCreated, order)

	return order, nil
}

// GetOrder returns the order with its items, reading through the cache
// when one is configured.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if cached := s.cachedOrder(ctx, id); cached != nil {
		return cached, nil
	}

	order, err := s.repo.FindOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	s.cacheOrder(ctx, order)
	return order, nil
}

// ListOrders applies the filter conjunctively. An order_id that matches no
// row, or an order_id/user_id pair that disagrees, yields an empty slice
// rather than an error.
func (s *OrderService) ListOrders(ctx context.Context, f repository.Filter) ([]domain.Order, error) {
	return s.repo.FindOrders(ctx, f)
}

// UpdateOrder applies a partial update to name, address and status.
// Orders older than the edit window are refused.
func (s *OrderService) UpdateOrder(ctx context.Context, id int64, patch domain.OrderPatch) (*domain.Order, error) {
	order, err := s.repo.FindOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	if s.now().Sub(order.CreateTime) > editWindow {
		return nil, domain.ErrEditWindowExpired
	}

	if err := patch.Apply(order); err != nil {
		return nil, err
	}
	if err := s.repo.SaveOrder(ctx, order); err != nil {
		return nil, err
	}

	s.invalidateOrder(ctx, id)
	return order, nil
}

// CancelOrder sets the status to CANCELED unconditionally, so a second
// cancel of the same order succeeds with the same result.
func (s *OrderService) CancelOrder(ctx context.Context, id int64) (*domain.Order, error) {
	order, err := s.repo.FindOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	order.Status = domain.StatusCanceled
	if err := s.repo.SaveOrder(ctx, order); err != nil {
		return nil, err
	}

	s.invalidateOrder(ctx, id)
	s.logger.WithField("order_id", id).Info("order canceled")
	go s.publishEvent(domain.EventOrderCanceled, order)

	return order, nil
}

// DeleteOrder removes the order and cascades to all its items.
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	order, err := s.repo.FindOrderByID(ctx, id)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}

	if err := s.repo.DeleteOrder(ctx, id); err != nil {
		return err
	}
	s.invalidateOrder(ctx, id)
	return nil
}

// CreateItem adds an item to an existing order. The quantity is forced to
// one and the status starts as ADDED regardless of the input.
func (s *OrderService) CreateItem(ctx context.Context, orderID int64, item *domain.Item) (*domain.Item, error) {
	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}

	item.ID = 0
	item.OrderID = orderID
	item.Amount = 1
	item.Status = domain.ItemStatusAdded
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	s.invalidateOrder(ctx, orderID)
	return item, nil
}

func (s *OrderService) ListItems(ctx context.Context, orderID int64) ([]domain.Item, error) {
	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return s.repo.FindItemsByOrder(ctx, orderID)
}

// GetItem looks the item up within the order's own items, comparing by
// item id only.
func (s *OrderService) GetItem(ctx context.Context, orderID, itemID int64) (*domain.Item, error) {
	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			return &order.Items[i], nil
		}
	}
	return nil, domain.ErrItemNotFound
}

// UpdateItem applies a partial item update and maintains the order's cost
// ledger. Three modes, in precedence order:
//   - targetAmount set: the amount becomes the target and the order cost
//     absorbs (target - old) * price;
//   - patch carries an amount: applied directly, cost untouched;
//   - neither: the amount is incremented by one and the cost grows by one
//     unit price.
// Item and order are persisted in a single gateway transaction. The
// read-modify-write spans several gateway calls, so without row-level
// locking two concurrent calls on the same item can still lose one delta.
func (s *OrderService) UpdateItem(ctx context.Context, orderID, itemID int64, patch domain.ItemPatch, targetAmount *int64) (*domain.Item, *domain.Order, error) {
	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order == nil {
		return nil, nil, domain.ErrOrderNotFound
	}

	item, err := s.repo.FindItemByID(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil || item.OrderID != orderID {
		return nil, nil, domain.ErrItemNotFound
	}

	if targetAmount != nil {
		// The target amount wins over a patched amount; the delta must be
		// computed against the stored quantity.
		patch.Amount = nil
	}
	amountHandled := patch.Amount != nil
	if err := patch.Apply(item); err != nil {
		return nil, nil, err
	}

	switch {
	case targetAmount != nil:
		delta, err := item.SetAmount(*targetAmount)
		if err != nil {
			return nil, nil, err
		}
		order.CostAmount += delta
	case amountHandled:
		// direct set through the patch, ledger untouched
	default:
		order.CostAmount += item.IncrementAmount()
	}

	if err := s.repo.SaveItemAndOrder(ctx, item, order); err != nil {
		return nil, nil, err
	}

	s.invalidateOrder(ctx, orderID)
	return item, order, nil
}

// DeleteItem removes the item from the order. An item that exists under a
// different order is a conflict, not a silent success.
func (s *OrderService) DeleteItem(ctx context.Context, orderID, itemID int64) error {
	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return domain.ErrOrderNotFound
	}

	item, err := s.repo.FindItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrItemNotFound
	}
	if item.OrderID != orderID {
		return domain.ErrItemNotInOrder
	}

	if err := s.repo.DeleteItem(ctx, itemID); err != nil {
		return err
	}
	s.invalidateOrder(ctx, orderID)
	return nil
}

func (s *OrderService) publishEvent(pattern string, order *domain.Order) {
	if s.publisher == nil {
		return
	}
	evt := domain.OrderEvent{
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		CostAmount: order.CostAmount,
		OccurredAt: s.now(),
	}
	if err := s.publisher.Publish(context.Background(), pattern, evt); err != nil {
		s.logger.WithError(err).WithField("pattern", pattern).Warn("failed to publish event")
	}
}

func orderCacheKey(id int64) string {
	return fmt.Sprintf("order:%d", id)
}

func (s *OrderService) cachedOrder(ctx context.Context, id int64) *domain.Order {
	if s.redisClient == nil {
		return nil
	}
	b, err := s.redisClient.Get(ctx, orderCacheKey(id)).Result()
	if err != nil {
		return nil
	}
	var order domain.Order
	if err := json.Unmarshal([]byte(b), &order); err != nil {
		return nil
	}
	if order.Items == nil {
		order.Items = []domain.Item{}
	}
	return &order
}

func (s *OrderService) cacheOrder(ctx context.Context, order *domain.Order) {
	if s.redisClient == nil {
		return
	}
	if data, err := json.Marshal(order); err == nil {
		s.redisClient.Set(ctx, orderCacheKey(order.ID), data, orderCacheTTL)
	}
}

func (s *OrderService) invalidateOrder(ctx context.Context, id int64) {
	if s.redisClient == nil {
		return
	}
	s.redisClient.Del(ctx, orderCacheKey(id))
}
