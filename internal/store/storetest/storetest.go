// Package storetest holds the behavioural contract every store implementation must satisfy.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("products", func(t *testing.T) { testProducts(t, newStore(t)) })
	t.Run("adjust stock", func(t *testing.T) { testAdjustStock(t, newStore(t)) })
	t.Run("carts", func(t *testing.T) { testCarts(t, newStore(t)) })
	t.Run("orders", func(t *testing.T) { testOrders(t, newStore(t)) })
	t.Run("accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("tokens", func(t *testing.T) { testTokens(t, newStore(t)) })
	t.Run("unit of work", func(t *testing.T) { testUnitOfWork(t, newStore(t)) })
}

func SeedUser(t *testing.T, s store.Store, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", Role: models.RoleCustomer}
	require.NoError(t, s.Accounts().Create(context.Background(), u))
	return u
}

func SeedProduct(t *testing.T, s store.Store, name, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: decimal.RequireFromString(price), Stock: stock}
	require.NoError(t, s.Products().Create(context.Background(), p))
	return p
}

func testProducts(t *testing.T, s store.Store) {
	ctx := context.Background()

	a := SeedProduct(t, s, "Gaming Laptop", "1499.99", 25)
	time.Sleep(2 * time.Millisecond)
	b := SeedProduct(t, s, "Wireless Headphones", "199.99", 100)

	got, err := s.Products().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gaming Laptop", got.Name)
	assert.True(t, decimal.RequireFromString("1499.99").Equal(got.Price))
	assert.Equal(t, 25, got.Stock)

	_, err = s.Products().Get(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	items, total, err := s.Products().List(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 2)
	assert.Equal(t, b.ID, items[0].ID, "newest first")

	items, total, err = s.Products().List(ctx, 1, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, items, 1)
	assert.Equal(t, a.ID, items[0].ID)

	items, total, err = s.Products().SearchByName(ctx, "headph", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, b.ID, items[0].ID)

	got.Price = decimal.RequireFromString("1399.00")
	require.NoError(t, s.Products().Save(ctx, got))
	got, err = s.Products().Get(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("1399").Equal(got.Price))

	require.NoError(t, s.Products().Delete(ctx, b.ID))
	assert.ErrorIs(t, s.Products().Delete(ctx, b.ID), store.ErrNotFound)
}

func testAdjustStock(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := SeedProduct(t, s, "Widget", "10.00", 5)

	require.NoError(t, s.Products().AdjustStock(ctx, p.ID, -3))
	assertStock(t, s, p.ID, 2)

	err := s.Products().AdjustStock(ctx, p.ID, -3)
	assert.ErrorIs(t, err, store.ErrInsufficientStock)
	assertStock(t, s, p.ID, 2)

	require.NoError(t, s.Products().AdjustStock(ctx, p.ID, -2))
	assertStock(t, s, p.ID, 0)

	require.NoError(t, s.Products().AdjustStock(ctx, p.ID, 7))
	assertStock(t, s, p.ID, 7)

	assert.ErrorIs(t, s.Products().AdjustStock(ctx, uuid.New(), -1), store.ErrNotFound)
}

func assertStock(t *testing.T, s store.Store, id uuid.UUID, want int) {
	t.Helper()
	p, err := s.Products().Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, want, p.Stock)
}

func testCarts(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := SeedUser(t, s, "cart@shop.test")
	p := SeedProduct(t, s, "Widget", "2.50", 10)
	q := SeedProduct(t, s, "Gadget", "4.00", 10)

	_, err := s.Carts().Find(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	c1, err := s.Carts().GetOrCreate(ctx, u.ID)
	require.NoError(t, err)
	c2, err := s.Carts().GetOrCreate(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID, "one cart per user")
	assert.Empty(t, c2.Items)

	item, err := s.Carts().AddItem(ctx, c1.ID, p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
	require.NotNil(t, item.Product)
	assert.Equal(t, "Widget", item.Product.Name)

	item, err = s.Carts().AddItem(ctx, c1.ID, p.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, item.Quantity, "duplicate add sums quantity")

	_, err = s.Carts().AddItem(ctx, c1.ID, q.ID, 1)
	require.NoError(t, err)

	cart, err := s.Carts().Find(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, p.ID, cart.Items[0].ProductID)
	require.NotNil(t, cart.Items[1].Product)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	locked, err := tx.Carts().FindForUpdate(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, locked.ID)
	require.Len(t, locked.Items, 2)
	require.NotNil(t, locked.Items[0].Product)
	_, err = tx.Carts().FindForUpdate(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, tx.Commit())

	got, err := s.Carts().Item(ctx, c1.ID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)

	require.NoError(t, s.Carts().RemoveItem(ctx, c1.ID, q.ID))
	assert.ErrorIs(t, s.Carts().RemoveItem(ctx, c1.ID, q.ID), store.ErrNotFound)
	_, err = s.Carts().Item(ctx, c1.ID, q.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Carts().Clear(ctx, c1.ID))
	cart, err = s.Carts().Find(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, c1.ID, cart.ID, "cart row survives clear")
}

func newOrder(u *models.User, p *models.Product, qty int) *models.Order {
	return &models.Order{
		UserID:      u.ID,
		Status:      models.StatusPending,
		TotalAmount: p.Price.Mul(decimal.NewFromInt(int64(qty))),
		Items: []models.OrderItem{
			{ProductID: p.ID, Quantity: qty, Price: p.Price},
		},
	}
}

func testOrders(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := SeedUser(t, s, "orders@shop.test")
	other := SeedUser(t, s, "other@shop.test")
	p := SeedProduct(t, s, "Widget", "2.50", 10)

	first := newOrder(u, p, 2)
	require.NoError(t, s.Orders().Create(ctx, first))
	require.NotEqual(t, uuid.Nil, first.ID)
	time.Sleep(2 * time.Millisecond)
	second := newOrder(u, p, 1)
	require.NoError(t, s.Orders().Create(ctx, second))
	require.NoError(t, s.Orders().Create(ctx, newOrder(other, p, 1)))

	got, err := s.Orders().GetForUser(ctx, u.ID, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.True(t, decimal.RequireFromString("5").Equal(got.TotalAmount))
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, p.Price.Equal(got.Items[0].Price))
	require.NotNil(t, got.Items[0].Product)

	_, err = s.Orders().GetForUser(ctx, other.ID, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "foreign order is indistinguishable from a missing one")
	_, err = s.Orders().Get(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	mine, err := s.Orders().ListForUser(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")

	all, err := s.Orders().ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, s.Orders().TransitionStatus(ctx, first.ID, models.StatusPending, models.StatusProcessing))
	err = s.Orders().TransitionStatus(ctx, first.ID, models.StatusPending, models.StatusCancelled)
	assert.ErrorIs(t, err, store.ErrStaleStatus)
	err = s.Orders().TransitionStatus(ctx, uuid.New(), models.StatusPending, models.StatusCancelled)
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err = s.Orders().Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := SeedUser(t, s, "acct@shop.test")

	dup := &models.User{Email: "acct@shop.test", PasswordHash: "y", Role: models.RoleCustomer}
	assert.ErrorIs(t, s.Accounts().Create(ctx, dup), store.ErrDuplicate)

	found, err := s.Accounts().FindByEmail(ctx, "acct@shop.test")
	require.NoError(t, err)
	assert.Equal(t, u.ID, found.ID)
	_, err = s.Accounts().FindByEmail(ctx, "nobody@shop.test")
	assert.ErrorIs(t, err, store.ErrNotFound)

	n, err := s.Accounts().CountByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = s.Accounts().CountByRole(ctx, models.RoleCustomer)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	for i := 1; i <= 3; i++ {
		acct, err := s.Accounts().IncrementCancelled(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, i, acct.CancelledOrdersCount)
		assert.False(t, acct.IsBlocked)
	}

	require.NoError(t, s.Accounts().Block(ctx, u.ID))
	got, err := s.Accounts().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsBlocked)
	assert.Equal(t, 3, got.CancelledOrdersCount)

	_, err = s.Accounts().IncrementCancelled(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.Accounts().Block(ctx, uuid.New()), store.ErrNotFound)
}

func testTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	live := &models.RevokedToken{JTI: "live", UserID: uuid.New(), ExpiresAt: now.Add(time.Hour)}
	old := &models.RevokedToken{JTI: "old", UserID: uuid.New(), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, s.Tokens().Revoke(ctx, live))
	require.NoError(t, s.Tokens().Revoke(ctx, live), "revoking twice is harmless")
	require.NoError(t, s.Tokens().Revoke(ctx, old))

	revoked, err := s.Tokens().IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := s.Tokens().PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	revoked, err = s.Tokens().IsRevoked(ctx, "old")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func testUnitOfWork(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := SeedProduct(t, s, "Widget", "1.00", 5)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Products().AdjustStock(ctx, p.ID, -4))
	extra := &models.Product{Name: "Ghost", Price: decimal.NewFromInt(1), Stock: 1}
	require.NoError(t, tx.Products().Create(ctx, extra))
	require.NoError(t, tx.Rollback())
	require.NoError(t, tx.Rollback(), "second rollback is a no-op")

	assertStock(t, s, p.ID, 5)
	_, err = s.Products().Get(ctx, extra.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Products().AdjustStock(ctx, p.ID, -4))
	require.NoError(t, tx.Commit())
	require.NoError(t, tx.Rollback(), "rollback after commit is a no-op")
	assert.Error(t, tx.Commit())

	assertStock(t, s, p.ID, 1)
}
