// Package service holds the storefront business operations. Every service
// is constructed explicitly with the *gorm.DB it works on.
package service

import (
	"context"
	"errors"

	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ProductCache is the read-through cache in front of product detail reads.
type ProductCache interface {
	GetProductCache(ctx context.Context, id uint) (*models.Product, error)
	CacheProduct(ctx context.Context, product *models.Product) error
	InvalidateProducts(ctx context.Context, ids ...uint) error
}

// OrderEvents receives order lifecycle notifications after commit.
// Implementations must not block.
type OrderEvents interface {
	OrderPlaced(order *models.Order)
	OrderStatusChanged(order *models.Order, from models.OrderStatus)
}

type AuditReader interface {
	GetAuditLogs(ctx context.Context, entityType, entityID string, limit int64) ([]*repository.AuditLog, error)
}

// Requester identifies the caller of an operation that depends on ownership.
type Requester struct {
	UserID uint
	Role   models.Role
}

type Page[T any] struct {
	Items       []T
	TotalItems  int64
	TotalPages  int
	CurrentPage int
	Limit       int
}

func newPage[T any](items []T, total int64, page, limit int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:       items,
		TotalItems:  total,
		TotalPages:  int((total + int64(limit) - 1) / int64(limit)),
		CurrentPage: page,
		Limit:       limit,
	}
}

// normalizePage clamps page to >= 1 and limit to 1..maxPageSize.
func normalizePage(page, limit, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func invalidate(ctx context.Context, cache ProductCache, logger *zap.Logger, ids ...uint) {
	if cache == nil || len(ids) == 0 {
		return
	}
	if err := cache.InvalidateProducts(ctx, ids...); err != nil {
		logger.Warn("Failed to invalidate product cache", zap.Uints("product_ids", ids), zap.Error(err))
	}
}
