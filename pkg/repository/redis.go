package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/icecreamshop/pkg/config"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/go-redis/redis/v8"
)

const productKeyPrefix = "product:"

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
			PoolSize: cfg.PoolSize,
		}),
		config: cfg,
	}
}

// NewRedisRepositoryWithClient wraps an existing client, mainly for tests.
func NewRedisRepositoryWithClient(client *redis.Client, cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{client: client, config: cfg}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func productKey(id uint) string {
	return fmt.Sprintf("%s%d", productKeyPrefix, id)
}

// CacheProduct stores a product snapshot for the configured TTL.
func (r *RedisRepository) CacheProduct(ctx context.Context, product *models.Product) error {
	return r.SetJSON(ctx, productKey(product.ID), product, r.config.TTL)
}

// GetProductCache returns ErrCacheMiss when the product is not cached.
func (r *RedisRepository) GetProductCache(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.GetJSON(ctx, productKey(id), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *RedisRepository) InvalidateProducts(ctx context.Context, ids ...uint) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	return r.client.Del(ctx, keys...).Err()
}
