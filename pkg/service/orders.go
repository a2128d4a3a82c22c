package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const historyLimit = 100

type OrderService struct {
	db     *gorm.DB
	cache  ProductCache
	events OrderEvents
	audit  AuditReader
	logger *zap.Logger
}

// NewOrderService wires the order operations. cache, events and audit may be nil.
func NewOrderService(db *gorm.DB, cache ProductCache, events OrderEvents, audit AuditReader, logger *zap.Logger) *OrderService {
	return &OrderService{
		db:     db,
		cache:  cache,
		events: events,
		audit:  audit,
		logger: logger.Named("orders"),
	}
}

func (s *OrderService) ListForUser(ctx context.Context, userID uint, page, limit int) (Page[models.Order], error) {
	page, limit = normalizePage(page, limit, defaultPageSize)
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return Page[models.Order]{}, fmt.Errorf("failed to count orders: %w", err)
	}

	var orders []models.Order
	err := db.Preload("Items").Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("ordered_at DESC").Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return Page[models.Order]{}, fmt.Errorf("failed to list orders: %w", err)
	}

	return newPage(orders, total, page, limit), nil
}

// Get hides other users' orders from customers behind NotFound.
func (s *OrderService) Get(ctx context.Context, orderID uint, requester Requester) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !requester.Role.IsStaff() && order.UserID != requester.UserID {
		return nil, apperr.NotFound("order")
	}
	return order, nil
}

// SetStatus moves an order along the status graph. Entering canceled puts
// the ordered quantities back in stock in the same transaction.
func (s *OrderService) SetStatus(ctx context.Context, orderID uint, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", apperr.ErrInvalidStatus, status)
	}

	var (
		from     models.OrderStatus
		changed  bool
		restored []uint
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Preload("Items").First(&order, orderID).Error; err != nil {
			if isNotFound(err) {
				return apperr.NotFound("order")
			}
			return err
		}

		from = order.Status
		if from == status {
			return nil
		}
		if !from.CanTransitionTo(status) {
			return fmt.Errorf("%w: cannot change from %s to %s", apperr.ErrInvalidStatus, from, status)
		}

		res := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, from).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: order status changed concurrently", apperr.ErrInvalidStatus)
		}

		if status == models.OrderStatusCanceled {
			for _, item := range order.Items {
				err := tx.Model(&models.Product{}).
					Where("id = ?", item.ProductID).
					UpdateColumn("stock", gorm.Expr("stock + ?", item.Quantity)).Error
				if err != nil {
					return err
				}
				restored = append(restored, item.ProductID)
			}
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, wrapInternal("failed to set order status", err)
	}

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return order, nil
	}

	s.logger.Info("Order status changed",
		zap.Uint("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(status)))

	invalidate(ctx, s.cache, s.logger, restored...)
	if s.events != nil {
		s.events.OrderStatusChanged(order, from)
	}
	return order, nil
}

// History returns the recorded events of an order, newest first.
func (s *OrderService) History(ctx context.Context, orderID uint) ([]*repository.AuditLog, error) {
	var exists int64
	if err := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Count(&exists).Error; err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if exists == 0 {
		return nil, apperr.NotFound("order")
	}

	if s.audit == nil {
		return []*repository.AuditLog{}, nil
	}
	logs, err := s.audit.GetAuditLogs(ctx, repository.AuditEntityOrder, strconv.FormatUint(uint64(orderID), 10), historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to read order history: %w", err)
	}
	return logs, nil
}

func (s *OrderService) load(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		Preload("Items.Product").
		Preload("User").
		First(&order, orderID).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}
