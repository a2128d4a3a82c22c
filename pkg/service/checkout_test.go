package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type checkoutFixture struct {
	db     *gorm.DB
	carts  *CartService
	orders *OrderService
	cache  *fakeCache
	events *fakeEvents
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	db := newTestDB(t)
	cache := newFakeCache()
	events := &fakeEvents{}
	return &checkoutFixture{
		db:     db,
		carts:  NewCartService(db, zap.NewNop()),
		orders: NewOrderService(db, cache, events, nil, zap.NewNop()),
		cache:  cache,
		events: events,
	}
}

func TestPlaceOrder_TotalsDecrementsAndClearsCart(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	user := seedUser(t, f.db, "ana@example.com", models.RoleCustomer)
	a := seedProduct(t, f.db, "Chocolate", "10.00", 5)
	b := seedProduct(t, f.db, "Creme", "5.00", 3)

	_, err := f.carts.AddItem(ctx, user.ID, a.ID, 2)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, user.ID, b.ID, 1)
	require.NoError(t, err)

	order, err := f.orders.PlaceOrder(ctx, user.ID, testAddress())
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, decimal.RequireFromString("25.00").Equal(order.Total), "total %s", order.Total)
	assert.True(t, order.Total.Equal(order.ItemsTotal()))
	require.Len(t, order.Items, 2)
	require.NotNil(t, order.Items[0].Product)
	assert.Equal(t, "Recife", order.DeliveryAddress.City)

	assert.Equal(t, 3, productStock(t, f.db, a.ID))
	assert.Equal(t, 2, productStock(t, f.db, b.ID))

	cart, err := f.carts.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.NotZero(t, cart.ID, "cart row is kept")
	assert.Empty(t, cart.Items)

	assert.Equal(t, []uint{order.ID}, f.events.placed)
	assert.ElementsMatch(t, []uint{a.ID, b.ID}, f.cache.invalidated)
}

func TestPlaceOrder_UsesFrozenCartPrice(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	user := seedUser(t, f.db, "ana@example.com", models.RoleCustomer)
	p := seedProduct(t, f.db, "Pistache", "8.00", 5)

	_, err := f.carts.AddItem(ctx, user.ID, p.ID, 2)
	require.NoError(t, err)
	require.NoError(t, f.db.Model(p).Update("price", decimal.RequireFromString("9.50")).Error)

	order, err := f.orders.PlaceOrder(ctx, user.ID, testAddress())
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("16.00").Equal(order.Total), "total %s", order.Total)
	assert.True(t, decimal.RequireFromString("8.00").Equal(order.Items[0].UnitPrice))
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	user := seedUser(t, f.db, "ana@example.com", models.RoleCustomer)

	_, err := f.orders.PlaceOrder(ctx, user.ID, testAddress())
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)

	p := seedProduct(t, f.db, "Coco", "6.00", 2)
	_, err = f.carts.AddItem(ctx, user.ID, p.ID, 1)
	require.NoError(t, err)
	_, err = f.carts.Clear(ctx, user.ID)
	require.NoError(t, err)

	_, err = f.orders.PlaceOrder(ctx, user.ID, testAddress())
	assert.ErrorIs(t, err, apperr.ErrEmptyCart)
}

func TestPlaceOrder_InvalidAddress(t *testing.T) {
	f := newCheckoutFixture(t)
	user := seedUser(t, f.db, "ana@example.com", models.RoleCustomer)

	addr := testAddress()
	addr.City = ""
	_, err := f.orders.PlaceOrder(context.Background(), user.ID, addr)
	require.ErrorIs(t, err, apperr.ErrValidation)
	assert.Contains(t, err.Error(), "city")
}

func TestPlaceOrder_ShortageRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	user := seedUser(t, f.db, "ana@example.com", models.RoleCustomer)
	a := seedProduct(t, f.db, "Chocolate", "10.00", 5)
	b := seedProduct(t, f.db, "Creme", "5.00", 3)

	_, err := f.carts.AddItem(ctx, user.ID, a.ID, 2)
	require.NoError(t, err)
	_, err = f.carts.AddItem(ctx, user.ID, b.ID, 3)
	require.NoError(t, err)

	// stock drops after the item was added
	require.NoError(t, f.db.Model(b).Update("stock", 1).Error)

	_, err = f.orders.PlaceOrder(ctx, user.ID, testAddress())
	var stockErr *apperr.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, b.ID, stockErr.ProductID)
	assert.Equal(t, 1, stockErr.Available)

	assert.Equal(t, 5, productStock(t, f.db, a.ID))
	assert.Equal(t, 1, productStock(t, f.db, b.ID))

	var orders int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)

	cart, err := f.carts.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 2)
	assert.Empty(t, f.events.placed)
}

func TestPlaceOrder_ConcurrentCheckoutForLastUnit(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	p := seedProduct(t, f.db, "Último", "9.00", 1)
	u1 := seedUser(t, f.db, "ana@example.com", models.RoleCustomer)
	u2 := seedUser(t, f.db, "bia@example.com", models.RoleCustomer)

	for _, u := range []*models.User{u1, u2} {
		_, err := f.carts.AddItem(ctx, u.ID, p.ID, 1)
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, u := range []*models.User{u1, u2} {
		wg.Add(1)
		go func(i int, userID uint) {
			defer wg.Done()
			_, errs[i] = f.orders.PlaceOrder(ctx, userID, testAddress())
		}(i, u.ID)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t,
			errors.Is(err, apperr.ErrInsufficientStock) || errors.Is(err, apperr.ErrConcurrentStockConflict),
			"loser must fail with a stock error, got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, productStock(t, f.db, p.ID))
}


func TestPlaceOrder_StockTakenBeforeDecrementRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	user := seedUser(t, f.db, "ana@example.com", models.RoleCustomer)
	p := seedProduct(t, f.db, "Flocos", "7.00", 2)

	_, err := f.carts.AddItem(ctx, user.ID, p.ID, 2)
	require.NoError(t, err)

	// Another buyer takes one unit after the stock check but before the decrement.
	var drained bool
	err = f.db.Callback().Create().After("gorm:create").Register("test:drain_stock", func(tx *gorm.DB) {
		if drained || tx.Error != nil || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "order_items" {
			return
		}
		drained = true
		tx.Session(&gorm.Session{NewDB: true}).
			Model(&models.Product{}).
			Where("id = ?", p.ID).
			UpdateColumn("stock", 1)
	})
	require.NoError(t, err)

	_, err = f.orders.PlaceOrder(ctx, user.ID, testAddress())
	require.ErrorIs(t, err, apperr.ErrConcurrentStockConflict)
	assert.True(t, drained)

	var orders, orderItems int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&orders).Error)
	require.NoError(t, f.db.Model(&models.OrderItem{}).Count(&orderItems).Error)
	assert.Zero(t, orders)
	assert.Zero(t, orderItems)
	assert.Equal(t, 2, productStock(t, f.db, p.ID))

	cart, err := f.carts.Get(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	assert.Empty(t, f.events.placed)
	assert.Empty(t, f.cache.invalidated)
}
