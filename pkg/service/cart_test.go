package service

import (
	"context"
	"testing"
	"time"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestCart_GetWithoutCartCreatesNothing(t *testing.T) {
	db := newTestDB(t)
	svc := NewCartService(db, zap.NewNop())
	user := seedUser(t, db, "ana@example.com", models.RoleCustomer)

	cart, err := svc.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Zero(t, cart.ID)
	assert.Empty(t, cart.Items)

	var count int64
	require.NoError(t, db.Model(&models.Cart{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCart_AddMergesAndFreezesPrice(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCartService(db, zap.NewNop())
	user := seedUser(t, db, "ana@example.com", models.RoleCustomer)
	product := seedProduct(t, db, "Chocolate", "10.00", 10)

	_, err := svc.AddItem(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)

	require.NoError(t, db.Model(product).Update("price", decimal.RequireFromString("12.00")).Error)

	cart, err := svc.AddItem(ctx, user.ID, product.ID, 3)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.True(t, decimal.RequireFromString("10.00").Equal(cart.Items[0].UnitPrice))
	assert.True(t, decimal.RequireFromString("50.00").Equal(cart.Total()))
	require.NotNil(t, cart.Items[0].Product)
	assert.Equal(t, "Chocolate", cart.Items[0].Product.Name)
}

func TestCart_AddValidation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCartService(db, zap.NewNop())
	user := seedUser(t, db, "ana@example.com", models.RoleCustomer)
	product := seedProduct(t, db, "Morango", "5.00", 3)

	_, err := svc.AddItem(ctx, user.ID, product.ID, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = svc.AddItem(ctx, user.ID, 9999, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.AddItem(ctx, user.ID, product.ID, 4)
	var stockErr *apperr.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)
	assert.Equal(t, "Morango", stockErr.Product)

	_, err = svc.AddItem(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, user.ID, product.ID, 2)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock, "merged quantity exceeds stock")
}

func TestCart_UpdateAndRemoveRequireOwnership(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCartService(db, zap.NewNop())
	owner := seedUser(t, db, "ana@example.com", models.RoleCustomer)
	other := seedUser(t, db, "bia@example.com", models.RoleCustomer)
	product := seedProduct(t, db, "Baunilha", "7.50", 5)

	cart, err := svc.AddItem(ctx, owner.ID, product.ID, 1)
	require.NoError(t, err)
	itemID := cart.Items[0].ID

	_, err = svc.UpdateItem(ctx, other.ID, itemID, 2)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.RemoveItem(ctx, other.ID, itemID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.UpdateItem(ctx, owner.ID, itemID, -1)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = svc.UpdateItem(ctx, owner.ID, itemID, 6)
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)

	cart, err = svc.UpdateItem(ctx, owner.ID, itemID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, cart.Items[0].Quantity)

	cart, err = svc.UpdateItem(ctx, owner.ID, itemID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	cart, err = svc.AddItem(ctx, owner.ID, product.ID, 1)
	require.NoError(t, err)
	cart, err = svc.RemoveItem(ctx, owner.ID, cart.Items[0].ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCart_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCartService(db, zap.NewNop())
	user := seedUser(t, db, "ana@example.com", models.RoleCustomer)
	product := seedProduct(t, db, "Limão", "4.00", 5)

	_, err := svc.Clear(ctx, user.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.AddItem(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		cart, err := svc.Clear(ctx, user.ID)
		require.NoError(t, err)
		assert.NotZero(t, cart.ID)
		assert.Empty(t, cart.Items)
	}
}

// raceCreate makes the first INSERT into table collide with a row written
// just before it, the way a concurrent request would.
func raceCreate(t *testing.T, db *gorm.DB, table string, insert func(tx *gorm.DB)) *bool {
	t.Helper()
	var fired bool
	err := db.Callback().Create().Before("gorm:create").Register("test:race_"+table, func(tx *gorm.DB) {
		if fired || tx.Statement.Schema == nil || tx.Statement.Schema.Table != table {
			return
		}
		fired = true
		insert(tx.Session(&gorm.Session{NewDB: true}))
	})
	require.NoError(t, err)
	return &fired
}

func TestCart_AddSurvivesRacingCartCreation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCartService(db, zap.NewNop())
	user := seedUser(t, db, "ana@example.com", models.RoleCustomer)
	product := seedProduct(t, db, "Chocolate", "10.00", 10)

	fired := raceCreate(t, db, "carts", func(tx *gorm.DB) {
		now := time.Now().UTC()
		require.NoError(t, tx.Exec("INSERT INTO carts (user_id, created_at, updated_at) VALUES (?, ?, ?)", user.ID, now, now).Error)
	})

	cart, err := svc.AddItem(ctx, user.ID, product.ID, 2)
	require.NoError(t, err)
	assert.True(t, *fired)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)

	var carts int64
	require.NoError(t, db.Model(&models.Cart{}).Where("user_id = ?", user.ID).Count(&carts).Error)
	assert.EqualValues(t, 1, carts)
}

func TestCart_AddSurvivesRacingLineCreation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	svc := NewCartService(db, zap.NewNop())
	user := seedUser(t, db, "ana@example.com", models.RoleCustomer)
	first := seedProduct(t, db, "Morango", "7.00", 10)
	product := seedProduct(t, db, "Chocolate", "10.00", 10)

	_, err := svc.AddItem(ctx, user.ID, first.ID, 1)
	require.NoError(t, err)

	fired := raceCreate(t, db, "cart_items", func(tx *gorm.DB) {
		item, ok := tx.Statement.Dest.(*models.CartItem)
		if !ok {
			return
		}
		now := time.Now().UTC()
		require.NoError(t, tx.Exec(
			"INSERT INTO cart_items (cart_id, product_id, quantity, unit_price, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
			item.CartID, item.ProductID, 1, item.UnitPrice, now, now).Error)
	})

	cart, err := svc.AddItem(ctx, user.ID, product.ID, 3)
	require.NoError(t, err)
	assert.True(t, *fired)
	require.Len(t, cart.Items, 2)

	var lines int64
	require.NoError(t, db.Model(&models.CartItem{}).Where("product_id = ?", product.ID).Count(&lines).Error)
	assert.EqualValues(t, 1, lines)
}
