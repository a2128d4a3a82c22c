package service

import (
	"context"
	"strings"
	"time"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/example/icecreamshop/pkg/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlaceOrder turns the user's cart into a pending order. Stock checks, the
// order rows, the stock decrement and emptying the cart share one
// transaction; any failure leaves the database untouched.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uint, address models.Address) (*models.Order, error) {
	if missing := address.MissingFields(); len(missing) > 0 {
		return nil, apperr.Validation("delivery address is missing %s", strings.Join(missing, ", "))
	}

	var (
		order      models.Order
		productIDs []uint
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := loadCart(tx, userID)
		if err != nil {
			return err
		}
		if cart == nil || len(cart.Items) == 0 {
			return apperr.ErrEmptyCart
		}

		for i := range cart.Items {
			item := &cart.Items[i]
			if item.Product == nil {
				return apperr.NotFound("product")
			}
			if item.Product.Stock < item.Quantity {
				return stockError(item.Product, item.Quantity)
			}
		}

		order = models.Order{
			UserID:          userID,
			Status:          models.OrderStatusPending,
			Total:           cart.Total(),
			DeliveryAddress: address,
			OrderedAt:       time.Now().UTC(),
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(cart.Items))
		for _, ci := range cart.Items {
			items = append(items, models.OrderItem{
				OrderID:   order.ID,
				ProductID: ci.ProductID,
				Quantity:  ci.Quantity,
				UnitPrice: ci.UnitPrice,
			})
		}
		if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
			return err
		}

		for _, ci := range cart.Items {
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", ci.ProductID, ci.Quantity).
				UpdateColumn("stock", gorm.Expr("stock - ?", ci.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.ErrConcurrentStockConflict
			}
			productIDs = append(productIDs, ci.ProductID)
		}

		return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		s.logger.Info("Checkout rejected", zap.Uint("user_id", userID), zap.Error(err))
		return nil, wrapInternal("failed to place order", err)
	}

	s.logger.Info("Order placed",
		zap.Uint("order_id", order.ID),
		zap.Uint("user_id", userID),
		zap.String("total", order.Total.StringFixed(2)))

	invalidate(ctx, s.cache, s.logger, productIDs...)

	placed, err := s.load(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if s.events != nil {
		s.events.OrderPlaced(placed)
	}
	return placed, nil
}
