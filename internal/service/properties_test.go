package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store/memory"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

type world struct {
	store    *memory.Store
	carts    *CartService
	orders   *OrderService
	products []*models.Product
}

func newWorld(t *rapid.T) *world {
	s := memory.New()
	w := &world{
		store:  s,
		carts:  &CartService{Store: s},
		orders: &OrderService{Store: s, Policy: BlockPolicy{}},
	}
	n := rapid.IntRange(1, 4).Draw(t, "products")
	for i := 0; i < n; i++ {
		p := &models.Product{
			Name:  fmt.Sprintf("product-%d", i),
			Price: decimal.New(rapid.Int64Range(1, 100000).Draw(t, "cents"), -2),
			Stock: rapid.IntRange(0, 20).Draw(t, "stock"),
		}
		if err := s.Products().Create(context.Background(), p); err != nil {
			t.Fatalf("seed product: %v", err)
		}
		w.products = append(w.products, p)
	}
	return w
}

func (w *world) user(t *rapid.T, email string) *models.User {
	u := &models.User{Email: email, PasswordHash: "x", Role: models.RoleCustomer}
	if err := w.store.Accounts().Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (w *world) stocks(t *rapid.T) map[string]int {
	out := map[string]int{}
	for _, p := range w.products {
		got, err := w.store.Products().Get(context.Background(), p.ID)
		if err != nil {
			t.Fatalf("get product: %v", err)
		}
		out[p.Name] = got.Stock
	}
	return out
}

// fillCart writes cart lines straight to the store so quantities may exceed stock.
func (w *world) fillCart(t *rapid.T, u *models.User) map[string]int {
	ctx := context.Background()
	cart, err := w.store.Carts().GetOrCreate(ctx, u.ID)
	if err != nil {
		t.Fatalf("cart: %v", err)
	}
	want := map[string]int{}
	for _, p := range w.products {
		qty := rapid.IntRange(0, 25).Draw(t, "qty")
		if qty == 0 {
			continue
		}
		if _, err := w.store.Carts().AddItem(ctx, cart.ID, p.ID, qty); err != nil {
			t.Fatalf("add item: %v", err)
		}
		want[p.Name] = qty
	}
	return want
}

func TestPlace_ConservesStock(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		w := newWorld(t)
		u := w.user(t, "buyer@example.com")
		ctx := context.Background()

		lines := w.fillCart(t, u)
		before := w.stocks(t)

		order, err := w.orders.Place(ctx, u.ID)
		after := w.stocks(t)

		if err != nil {
			if len(lines) > 0 && !errors.Is(err, ErrConflict) {
				t.Fatalf("unexpected error: %v", err)
			}
			for name, s := range before {
				if after[name] != s {
					t.Fatalf("%s stock changed on failure: %d -> %d", name, s, after[name])
				}
			}
			return
		}

		ordered := map[string]int{}
		for _, it := range order.Items {
			ordered[it.Product.Name] += it.Quantity
		}
		for name, s := range before {
			if s-after[name] != ordered[name] {
				t.Fatalf("%s: stock fell by %d, ordered %d", name, s-after[name], ordered[name])
			}
			if ordered[name] != lines[name] {
				t.Fatalf("%s: ordered %d, cart had %d", name, ordered[name], lines[name])
			}
		}

		cart, err := w.carts.GetCart(ctx, u.ID)
		if err != nil {
			t.Fatalf("get cart: %v", err)
		}
		if len(cart.Items) != 0 {
			t.Fatalf("cart not empty after placement: %d items", len(cart.Items))
		}
	})
}

func TestPlace_ConcurrentNeverNegative(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		w := newWorld(t)
		ctx := context.Background()
		buyers := rapid.IntRange(2, 6).Draw(t, "buyers")

		users := make([]*models.User, buyers)
		for i := range users {
			users[i] = w.user(t, fmt.Sprintf("buyer-%d@example.com", i))
			w.fillCart(t, users[i])
		}

		var wg sync.WaitGroup
		for _, u := range users {
			wg.Add(1)
			go func(u *models.User) {
				defer wg.Done()
				_, _ = w.orders.Place(ctx, u.ID)
			}(u)
		}
		wg.Wait()

		sold := map[string]int{}
		all, err := w.orders.ListAll(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		for _, o := range all {
			for _, it := range o.Items {
				sold[it.Product.Name] += it.Quantity
			}
		}
		for _, p := range w.products {
			got := w.stocks(t)[p.Name]
			if got < 0 {
				t.Fatalf("%s stock went negative: %d", p.Name, got)
			}
			if got+sold[p.Name] != p.Stock {
				t.Fatalf("%s: %d left + %d sold != %d seeded", p.Name, got, sold[p.Name], p.Stock)
			}
		}
	})
}

func TestCancel_RestoresStockAndCountsOnce(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		w := newWorld(t)
		u := w.user(t, "buyer@example.com")
		ctx := context.Background()

		rounds := rapid.IntRange(1, 5).Draw(t, "rounds")
		for round := 1; round <= rounds; round++ {
			initial := w.stocks(t)
			for _, p := range w.products {
				if initial[p.Name] == 0 {
					continue
				}
				qty := rapid.IntRange(1, initial[p.Name]).Draw(t, "qty")
				if _, err := w.carts.AddItem(ctx, u.ID, p.ID, qty); err != nil {
					t.Fatalf("add item: %v", err)
				}
			}

			order, err := w.orders.Place(ctx, u.ID)
			if errors.Is(err, ErrValidation) || errors.Is(err, ErrForbidden) {
				return
			}
			if err != nil {
				t.Fatalf("place: %v", err)
			}

			res, err := w.orders.Cancel(ctx, u.ID, order.ID)
			if err != nil {
				t.Fatalf("cancel: %v", err)
			}
			if res.CancelledOrdersCount != round {
				t.Fatalf("count %d after %d cancellations", res.CancelledOrdersCount, round)
			}
			if res.IsBlocked != (round >= DefaultBlockThreshold) {
				t.Fatalf("blocked=%v after %d cancellations", res.IsBlocked, round)
			}
			if _, err := w.orders.Cancel(ctx, u.ID, order.ID); !errors.Is(err, ErrValidation) {
				t.Fatalf("second cancel: want validation error, got %v", err)
			}

			after := w.stocks(t)
			for name, s := range initial {
				if after[name] != s {
					t.Fatalf("%s: stock %d after cancel, want %d", name, after[name], s)
				}
			}
		}
	})
}
