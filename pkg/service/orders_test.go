package service

import (
	"context"
	"strconv"
	"testing"

	"github.com/example/icecreamshop/pkg/apperr"
	"github.com/example/icecreamshop/pkg/models"
	"github.com/example/icecreamshop/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func placeTestOrder(t *testing.T, f *checkoutFixture, user *models.User, p *models.Product, qty int) *models.Order {
	t.Helper()
	ctx := context.Background()
	_, err := f.carts.AddItem(ctx, user.ID, p.ID, qty)
	require.NoError(t, err)
	order, err := f.orders.PlaceOrder(ctx, user.ID, testAddress())
	require.NoError(t, err)
	return order
}

func TestSetStatus_FollowsGraph(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	user := seedUser(t, f.db, "ana@example.com", models.RoleCustomer)
	p := seedProduct(t, f.db, "Flocos", "6.00", 10)
	order := placeTestOrder(t, f, user, p, 1)

	_, err := f.orders.SetStatus(ctx, order.ID, "lost")
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)

	_, err = f.orders.SetStatus(ctx, order.ID, models.OrderStatusDelivered)
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus, "pending cannot jump to delivered")

	_, err = f.orders.SetStatus(ctx, 9999, models.OrderStatusProcessing)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	for _, next := range []models.OrderStatus{
		models.OrderStatusProcessing,
		models.OrderStatusShipped,
		models.OrderStatusDelivered,
	} {
		updated, err := f.orders.SetStatus(ctx, order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	_, err = f.orders.SetStatus(ctx, order.ID, models.OrderStatusCanceled)
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus, "delivered is terminal")
	assert.Equal(t, 9, productStock(t, f.db, p.ID))

	require.Len(t, f.events.changes, 3)
	assert.Equal(t, statusChange{OrderID: order.ID, From: models.OrderStatusPending, To: models.OrderStatusProcessing}, f.events.changes[0])
}

func TestSetStatus_CancelRestoresStockOnce(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	user := seedUser(t, f.db, "ana@example.com", models.RoleCustomer)
	p := seedProduct(t, f.db, "Menta", "4.00", 5)
	order := placeTestOrder(t, f, user, p, 3)
	require.Equal(t, 2, productStock(t, f.db, p.ID))

	canceled, err := f.orders.SetStatus(ctx, order.ID, models.OrderStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCanceled, canceled.Status)
	assert.Equal(t, 5, productStock(t, f.db, p.ID))

	again, err := f.orders.SetStatus(ctx, order.ID, models.OrderStatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCanceled, again.Status)
	assert.Equal(t, 5, productStock(t, f.db, p.ID), "second cancel must not restore again")

	_, err = f.orders.SetStatus(ctx, order.ID, models.OrderStatusPending)
	assert.ErrorIs(t, err, apperr.ErrInvalidStatus)
	assert.Len(t, f.events.changes, 1)
}

func TestOrders_GetHidesForeignOrders(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	owner := seedUser(t, f.db, "ana@example.com", models.RoleCustomer)
	other := seedUser(t, f.db, "bia@example.com", models.RoleCustomer)
	admin := seedUser(t, f.db, "admin@example.com", models.RoleAdmin)
	p := seedProduct(t, f.db, "Uva", "3.00", 5)
	order := placeTestOrder(t, f, owner, p, 1)

	got, err := f.orders.Get(ctx, order.ID, Requester{UserID: owner.ID, Role: owner.Role})
	require.NoError(t, err)
	require.NotNil(t, got.User)
	assert.Equal(t, owner.Email, got.User.Email)

	_, err = f.orders.Get(ctx, order.ID, Requester{UserID: other.ID, Role: other.Role})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.orders.Get(ctx, order.ID, Requester{UserID: admin.ID, Role: admin.Role})
	assert.NoError(t, err)
}

func TestOrders_ListForUserNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newCheckoutFixture(t)
	user := seedUser(t, f.db, "ana@example.com", models.RoleCustomer)
	other := seedUser(t, f.db, "bia@example.com", models.RoleCustomer)
	p := seedProduct(t, f.db, "Manga", "5.00", 10)

	first := placeTestOrder(t, f, user, p, 1)
	second := placeTestOrder(t, f, user, p, 2)
	placeTestOrder(t, f, other, p, 1)

	page, err := f.orders.ListForUser(ctx, user.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, page.TotalItems)
	require.Len(t, page.Items, 2)
	assert.Equal(t, second.ID, page.Items[0].ID)
	assert.Equal(t, first.ID, page.Items[1].ID)
	assert.NotEmpty(t, page.Items[0].Items)

	page, err = f.orders.ListForUser(ctx, user.ID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, first.ID, page.Items[0].ID)
}

func TestOrders_History(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	audit := repository.NewMemoryAuditLog()
	orders := NewOrderService(db, nil, nil, audit, zap.NewNop())
	carts := NewCartService(db, zap.NewNop())
	user := seedUser(t, db, "ana@example.com", models.RoleCustomer)
	p := seedProduct(t, db, "Café", "7.00", 3)

	_, err := carts.AddItem(ctx, user.ID, p.ID, 1)
	require.NoError(t, err)
	order, err := orders.PlaceOrder(ctx, user.ID, testAddress())
	require.NoError(t, err)

	require.NoError(t, audit.CreateAuditLog(ctx, &repository.AuditLog{
		Action:     "order.placed",
		EntityType: repository.AuditEntityOrder,
		EntityID:   strconv.FormatUint(uint64(order.ID), 10),
	}))

	logs, err := orders.History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "order.placed", logs[0].Action)

	_, err = orders.History(ctx, 9999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
