package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultReviewPageSize = 5

type ReviewService struct {
	db     *gorm.DB
	cache  ProductCache
	logger *zap.Logger
}

func NewReviewService(db *gorm.DB, cache ProductCache, logger *zap.Logger) *ReviewService {
	return &ReviewService{db: db, cache: cache, logger: logger.Named("reviews")}
}

// Create records the user's single review of a product.
func (s *ReviewService) Create(ctx context.Context, userID, productID uint, rating int, comment *string) (*models.Review, error) {
	if rating < models.MinRating || rating > models.MaxRating {
		return nil, apperr.ErrInvalidRating
	}
	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		if trimmed == "" {
			comment = nil
		} else {
			comment = &trimmed
		}
	}

	db := s.db.WithContext(ctx)
	if err := ensureProduct(db, productID); err != nil {
		return nil, err
	}

	review := models.Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    rating,
		Comment:   comment,
	}
	if err := db.Omit(clause.Associations).Create(&review).Error; err != nil {
		if errors.Is(repository.TranslateError(err), repository.ErrDuplicateKey) {
			return nil, apperr.ErrDuplicateReview
		}
		return nil, fmt.Errorf("failed to create review: %w", err)
	}

	invalidate(ctx, s.cache, s.logger, productID)

	if err := db.Preload("User").First(&review, review.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to reload review: %w", err)
	}
	return &review, nil
}

// List pages through a product's reviews, newest first.
func (s *ReviewService) List(ctx context.Context, productID uint, page, limit int) (Page[models.Review], error) {
	page, limit = normalizePage(page, limit, defaultReviewPageSize)
	db := s.db.WithContext(ctx)

	if err := ensureProduct(db, productID); err != nil {
		return Page[models.Review]{}, err
	}

	var total int64
	if err := db.Model(&models.Review{}).Where("product_id = ?", productID).Count(&total).Error; err != nil {
		return Page[models.Review]{}, fmt.Errorf("failed to count reviews: %w", err)
	}

	var reviews []models.Review
	err := db.Preload("User").
		Where("product_id = ?", productID).
		Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&reviews).Error
	if err != nil {
		return Page[models.Review]{}, fmt.Errorf("failed to list reviews: %w", err)
	}

	return newPage(reviews, total, page, limit), nil
}

func ensureProduct(db *gorm.DB, productID uint) error {
	var count int64
	if err := db.Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to look up product: %w", err)
	}
	if count == 0 {
		return apperr.NotFound("product")
	}
	return nil
}
