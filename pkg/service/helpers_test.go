package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/example/icecreamshop/pkg/config"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString()),
	}
	db, err := repository.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))
	t.Cleanup(func() { _ = repository.Close(db) })
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	user := &models.User{Name: "User " + email, Email: email, Role: role}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedProduct(t *testing.T, db *gorm.DB, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Category: "sorvete",
		Stock:    stock,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func productStock(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, id).Error)
	return p.Stock
}

func testAddress() models.Address {
	return models.Address{
		Street:       "Rua das Flores",
		Number:       "42",
		Neighborhood: "Centro",
		City:         "Recife",
		State:        "PE",
		PostalCode:   "50000-000",
	}
}

type fakeCache struct {
	mu          sync.Mutex
	products    map[uint]*models.Product
	invalidated []uint
}

func newFakeCache() *fakeCache {
	return &fakeCache{products: map[uint]*models.Product{}}
}

func (c *fakeCache) GetProductCache(_ context.Context, id uint) (*models.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[id]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return p, nil
}

func (c *fakeCache) CacheProduct(_ context.Context, p *models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
	return nil
}

func (c *fakeCache) InvalidateProducts(_ context.Context, ids ...uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.products, id)
		c.invalidated = append(c.invalidated, id)
	}
	return nil
}

type statusChange struct {
	OrderID uint
	From    models.OrderStatus
	To      models.OrderStatus
}

type fakeEvents struct {
	mu      sync.Mutex
	placed  []uint
	changes []statusChange
}

func (e *fakeEvents) OrderPlaced(order *models.Order) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.placed = append(e.placed, order.ID)
}

func (e *fakeEvents) OrderStatusChanged(order *models.Order, from models.OrderStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.changes = append(e.changes, statusChange{OrderID: order.ID, From: from, To: order.Status})
}
