package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CartService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewCartService(db *gorm.DB, logger *zap.Logger) *CartService {
	return &CartService{db: db, logger: logger.Named("cart")}
}

// Get returns the user's cart. A user without a cart row gets an empty
// cart with ID 0; nothing is created.
func (s *CartService) Get(ctx context.Context, userID uint) (*models.Cart, error) {
	cart, err := loadCart(s.db.WithContext(ctx), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if cart == nil {
		return &models.Cart{UserID: userID, Items: []models.CartItem{}}, nil
	}
	return cart, nil
}

// AddItem creates the cart on first use and merges repeated products into
// one line. The unit price is the one seen on the first add.
func (s *CartService) AddItem(ctx context.Context, userID, productID uint, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}

	err := s.addItem(ctx, userID, productID, quantity)
	if errors.Is(repository.TranslateError(err), repository.ErrDuplicateKey) {
		// A concurrent add created the cart or the line first; the retry merges into it.
		s.logger.Debug("Cart add raced, retrying", zap.Uint("user_id", userID), zap.Uint("product_id", productID))
		err = s.addItem(ctx, userID, productID, quantity)
	}
	if err != nil {
		return nil, wrapInternal("failed to add cart item", err)
	}

	s.logger.Debug("Cart item added",
		zap.Uint("user_id", userID),
		zap.Uint("product_id", productID),
		zap.Int("quantity", quantity))
	return s.Get(ctx, userID)
}

func (s *CartService) addItem(ctx context.Context, userID, productID uint, quantity int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, productID).Error; err != nil {
			if isNotFound(err) {
				return apperr.NotFound("product")
			}
			return err
		}

		cart := models.Cart{UserID: userID}
		if err := tx.Where(models.Cart{UserID: userID}).FirstOrCreate(&cart).Error; err != nil {
			return err
		}

		var item models.CartItem
		err := tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).First(&item).Error
		switch {
		case err == nil:
			wanted := item.Quantity + quantity
			if wanted > product.Stock {
				return stockError(&product, wanted)
			}
			return tx.Model(&item).Update("quantity", wanted).Error
		case isNotFound(err):
			if quantity > product.Stock {
				return stockError(&product, quantity)
			}
			return tx.Create(&models.CartItem{
				CartID:    cart.ID,
				ProductID: productID,
				Quantity:  quantity,
				UnitPrice: product.Price,
			}).Error
		default:
			return err
		}
	})
}

// UpdateItem sets the line quantity; zero removes the line.
func (s *CartService) UpdateItem(ctx context.Context, userID, itemID uint, quantity int) (*models.Cart, error) {
	if quantity < 0 {
		return nil, apperr.Validation("quantity must not be negative")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := findOwnedItem(tx, userID, itemID)
		if err != nil {
			return err
		}

		if quantity == 0 {
			return tx.Delete(item).Error
		}

		var product models.Product
		if err := tx.First(&product, item.ProductID).Error; err != nil {
			if isNotFound(err) {
				return apperr.NotFound("product")
			}
			return err
		}
		if quantity > product.Stock {
			return stockError(&product, quantity)
		}
		return tx.Model(item).Update("quantity", quantity).Error
	})
	if err != nil {
		return nil, wrapInternal("failed to update cart item", err)
	}

	return s.Get(ctx, userID)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, itemID uint) (*models.Cart, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := findOwnedItem(tx, userID, itemID)
		if err != nil {
			return err
		}
		return tx.Delete(item).Error
	})
	if err != nil {
		return nil, wrapInternal("failed to remove cart item", err)
	}

	return s.Get(ctx, userID)
}

// Clear empties the cart and keeps the cart row. Clearing an empty cart is
// fine; a user without a cart row gets NotFound.
func (s *CartService) Clear(ctx context.Context, userID uint) (*models.Cart, error) {
	db := s.db.WithContext(ctx)

	var cart models.Cart
	if err := db.Where("user_id = ?", userID).First(&cart).Error; err != nil {
		if isNotFound(err) {
			return nil, apperr.NotFound("cart")
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	if err := db.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	cart.Items = []models.CartItem{}
	return &cart, nil
}

// loadCart returns nil without error when the user has no cart row.
func loadCart(db *gorm.DB, userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := db.
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		First(&cart).Error
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return &cart, nil
}

func findOwnedItem(tx *gorm.DB, userID, itemID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := tx.
		Where("id = ? AND cart_id IN (SELECT id FROM carts WHERE user_id = ?)", itemID, userID).
		First(&item).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("cart item")
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func stockError(p *models.Product, requested int) error {
	return &apperr.StockError{
		ProductID: p.ID,
		Product:   p.Name,
		Available: p.Stock,
		Requested: requested,
	}
}

// wrapInternal adds context to errors outside the apperr taxonomy.
func wrapInternal(msg string, err error) error {
	if apperr.IsInternal(err) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return err
}
