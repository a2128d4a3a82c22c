package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProductFilter struct {
	Category string
	Name     string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     int
	Limit    int
}

// ProductInput carries a create or partial update. Nil fields are left
// untouched on update.
type ProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Category    *string
	ImageURL    *string
	Stock       *int
}

type CatalogService struct {
	db     *gorm.DB
	cache  ProductCache
	logger *zap.Logger
}

func NewCatalogService(db *gorm.DB, cache ProductCache, logger *zap.Logger) *CatalogService {
	return &CatalogService{db: db, cache: cache, logger: logger.Named("catalog")}
}

func (s *CatalogService) List(ctx context.Context, f ProductFilter) (Page[models.Product], error) {
	page, limit := normalizePage(f.Page, f.Limit, defaultPageSize)

	q := s.db.WithContext(ctx).Model(&models.Product{})
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if name := strings.TrimSpace(f.Name); name != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(name))+"%")
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return Page[models.Product]{}, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	err := q.Order("name ASC").Order("id ASC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&products).Error
	if err != nil {
		return Page[models.Product]{}, fmt.Errorf("failed to list products: %w", err)
	}

	return newPage(products, total, page, limit), nil
}

// Get returns the product with its reviews, newest first.
func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Product, error) {
	if s.cache != nil {
		cached, err := s.cache.GetProductCache(ctx, id)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("Product cache read failed", zap.Uint("product_id", id), zap.Error(err))
		}
	}

	var product models.Product
	err := s.db.WithContext(ctx).
		Preload("Reviews", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Order("id DESC")
		}).
		Preload("Reviews.User").
		First(&product, id).Error
	if isNotFound(err) {
		return nil, apperr.NotFound("product")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.CacheProduct(ctx, &product); err != nil {
			s.logger.Warn("Product cache write failed", zap.Uint("product_id", id), zap.Error(err))
		}
	}
	return &product, nil
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	if in.Name == nil || in.Price == nil {
		return nil, apperr.Validation("name and price are required")
	}

	var product models.Product
	applyProductInput(&product, in)
	if err := validateProduct(&product); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.Uint("product_id", product.ID), zap.String("name", product.Name))
	return &product, nil
}

func (s *CatalogService) Update(ctx context.Context, id uint, in ProductInput) (*models.Product, error) {
	var product models.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&product, id).Error; err != nil {
			if isNotFound(err) {
				return apperr.NotFound("product")
			}
			return err
		}

		applyProductInput(&product, in)
		if err := validateProduct(&product); err != nil {
			return err
		}

		return tx.Select("name", "description", "price", "category", "image_url", "stock", "updated_at").
			Updates(&product).Error
	})
	if err != nil {
		if apperr.IsInternal(err) {
			return nil, fmt.Errorf("failed to update product: %w", err)
		}
		return nil, err
	}

	invalidate(ctx, s.cache, s.logger, id)
	s.logger.Info("Product updated", zap.Uint("product_id", id))
	return &product, nil
}

// Delete refuses products referenced by any order item. Cart lines and
// reviews of the product go with it.
func (s *CatalogService) Delete(ctx context.Context, id uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Select("id").First(&product, id).Error; err != nil {
			if isNotFound(err) {
				return apperr.NotFound("product")
			}
			return err
		}

		var referenced int64
		if err := tx.Model(&models.OrderItem{}).Where("product_id = ?", id).Count(&referenced).Error; err != nil {
			return err
		}
		if referenced > 0 {
			return apperr.ErrReferencedByOrder
		}

		if err := tx.Where("product_id = ?", id).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", id).Delete(&models.Review{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Product{}, id).Error; err != nil {
			if errors.Is(repository.TranslateError(err), repository.ErrForeignKey) {
				return apperr.ErrReferencedByOrder
			}
			return err
		}
		return nil
	})
	if err != nil {
		if apperr.IsInternal(err) {
			return fmt.Errorf("failed to delete product: %w", err)
		}
		return err
	}

	invalidate(ctx, s.cache, s.logger, id)
	s.logger.Info("Product deleted", zap.Uint("product_id", id))
	return nil
}

func applyProductInput(p *models.Product, in ProductInput) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Category != nil {
		p.Category = strings.TrimSpace(*in.Category)
	}
	if in.ImageURL != nil {
		p.ImageURL = *in.ImageURL
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Name == "":
		return apperr.Validation("name is required")
	case p.Price.IsNegative():
		return apperr.Validation("price must not be negative")
	case p.Stock < 0:
		return apperr.Validation("stock must not be negative")
	}
	return nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// escapeLike makes s match literally inside a LIKE pattern using '!' as the
// escape character, which MySQL, Postgres and SQLite all read the same way.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
