package mysql

import (
	"context"
	"errors"

	"github.com/MAOQIZHANG/orders/internal/domain"
	"github.com/MAOQIZHANG/orders/internal/repository"

	"gorm.io/gorm"
)

type orderRepo struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) repository.OrderRepository {
	return &orderRepo{db: db}
}

func (r *orderRepo) CreateOrder(ctx context.Context, order *domain.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return err
	}
	if order.ID == 0 {
		return errors.New("failed to assign order ID")
	}
	return nil
}

func (r *orderRepo) FindOrderByID(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).Preload("Items").First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if o.Items == nil {
		o.Items = []domain.Item{}
	}
	return &o, nil
}

func (r *orderRepo) FindOrders(ctx context.Context, f repository.Filter) ([]domain.Order, error) {
	q := r.db.WithContext(ctx).Preload("Items").Order("id")
	if f.OrderID != nil {
		q = q.Where("id = ?", *f.OrderID)
	}
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Name != nil {
		q = q.Where("name = ?", *f.Name)
	}

	var out []domain.Order
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Items == nil {
			out[i].Items = []domain.Item{}
		}
	}
	if out == nil {
		out = []domain.Order{}
	}
	return out, nil
}

func (r *orderRepo) SaveOrder(ctx context.Context, order *domain.Order) error {
	// Omit the association: items are persisted through their own calls.
	return r.db.WithContext(ctx).Omit("Items").Save(order).Error
}

// DeleteOrder removes the order and its items in one transaction. The
// cascade runs at the application level so the behavior does not depend on
// the storage engine honoring ON DELETE CASCADE.
func (r *orderRepo) DeleteOrder(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", id).Delete(&domain.Item{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Order{}, id).Error
	})
}

func (r *orderRepo) CreateItem(ctx context.Context, item *domain.Item) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return err
	}
	if item.ID == 0 {
		return errors.New("failed to assign item ID")
	}
	return nil
}

func (r *orderRepo) FindItemByID(ctx context.Context, id int64) (*domain.Item, error) {
	var it domain.Item
	err := r.db.WithContext(ctx).First(&it, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &it, nil
}

func (r *orderRepo) FindItemsByOrder(ctx context.Context, orderID int64) ([]domain.Item, error) {
	var out []domain.Item
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Order("id").Find(&out).Error; err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Item{}
	}
	return out, nil
}

func (r *orderRepo) SaveItemAndOrder(ctx context.Context, item *domain.Item, order *domain.Order) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(item).Error; err != nil {
			return err
		}
		return tx.Omit("Items").Save(order).Error
	})
}

func (r *orderRepo) DeleteItem(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&domain.Item{}, id).Error
}
