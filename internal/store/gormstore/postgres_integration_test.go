//go:build integration

package gormstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/Skotchmaster/storefront/internal/store/storetest"
	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func startPostgres(ctx context.Context, t *testing.T) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16",
		Env:          map[string]string{"POSTGRES_PASSWORD": "postgres", "POSTGRES_USER": "postgres", "POSTGRES_DB": "storefront"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		terminateCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		require.NoError(t, container.Terminate(terminateCtx))
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://postgres:postgres@%s:%s/storefront?sslmode=disable", host, mappedPort.Port())
}

func openPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gdb, err := db.Open(ctx, startPostgres(ctx, t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	require.NoError(t, Migrate(ctx, gdb))
	return gdb
}

func truncate(t *testing.T, gdb *gorm.DB) {
	t.Helper()
	require.NoError(t, gdb.Exec(`TRUNCATE revoked_tokens, order_items, orders, cart_items, carts, products, users CASCADE`).Error)
}

func TestPostgres(t *testing.T) {
	gdb := openPostgres(t)

	t.Run("contract", func(t *testing.T) {
		storetest.Run(t, func(t *testing.T) store.Store {
			truncate(t, gdb)
			return New(gdb)
		})
	})

	t.Run("workflow", func(t *testing.T) {
		truncate(t, gdb)
		runWorkflow(t, New(gdb))
	})

	t.Run("concurrent placement never oversells", func(t *testing.T) {
		truncate(t, gdb)
		s := New(gdb)
		ctx := context.Background()
		carts := &service.CartService{Store: s}
		orders := &service.OrderService{Store: s}

		const stock, buyers, each = 10, 12, 3
		p := storetest.SeedProduct(t, s, "Widget", "1.00", stock)
		users := make([]*models.User, buyers)
		for i := range users {
			users[i] = storetest.SeedUser(t, s, fmt.Sprintf("buyer-%d@example.com", i))
			_, err := carts.AddItem(ctx, users[i].ID, p.ID, each)
			require.NoError(t, err)
		}

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			placed int
		)
		start := make(chan struct{})
		for _, u := range users {
			wg.Add(1)
			go func(u *models.User) {
				defer wg.Done()
				<-start
				_, err := orders.Place(ctx, u.ID)
				if err == nil {
					mu.Lock()
					placed++
					mu.Unlock()
					return
				}
				if !errors.Is(err, service.ErrConflict) {
					t.Errorf("unexpected error: %v", err)
				}
			}(u)
		}
		close(start)
		wg.Wait()

		got, err := s.Products().Get(ctx, p.ID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.Stock, 0)
		assert.Equal(t, stock, got.Stock+placed*each)
		assert.Equal(t, stock/each, placed)
	})

	t.Run("one cart places one order", func(t *testing.T) {
		truncate(t, gdb)
		s := New(gdb)
		ctx := context.Background()
		carts := &service.CartService{Store: s}
		orders := &service.OrderService{Store: s}

		p := storetest.SeedProduct(t, s, "Widget", "1.00", 20)
		u := storetest.SeedUser(t, s, "twice@example.com")
		_, err := carts.AddItem(ctx, u.ID, p.ID, 3)
		require.NoError(t, err)

		errs := placeConcurrently(ctx, orders, []uuid.UUID{u.ID, u.ID, u.ID})

		var placed int
		for _, err := range errs {
			if err == nil {
				placed++
				continue
			}
			assert.ErrorIs(t, err, service.ErrValidation)
		}
		assert.Equal(t, 1, placed)

		list, err := orders.ListForUser(ctx, u.ID)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		got, err := s.Products().Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 17, got.Stock)
	})

	t.Run("opposite cart orders only ever conflict", func(t *testing.T) {
		truncate(t, gdb)
		s := New(gdb)
		ctx := context.Background()
		carts := &service.CartService{Store: s}
		orders := &service.OrderService{Store: s}

		a := storetest.SeedProduct(t, s, "A", "1.00", 1000)
		b := storetest.SeedProduct(t, s, "B", "1.00", 1000)

		const buyers = 16
		ids := make([]uuid.UUID, buyers)
		for i := range ids {
			u := storetest.SeedUser(t, s, fmt.Sprintf("cross-%d@example.com", i))
			first, second := a, b
			if i%2 == 1 {
				first, second = b, a
			}
			_, err := carts.AddItem(ctx, u.ID, first.ID, 1)
			require.NoError(t, err)
			_, err = carts.AddItem(ctx, u.ID, second.ID, 1)
			require.NoError(t, err)
			ids[i] = u.ID
		}

		var placed int
		for _, err := range placeConcurrently(ctx, orders, ids) {
			if err == nil {
				placed++
				continue
			}
			assert.ErrorIs(t, err, service.ErrConflict)
		}
		assert.Equal(t, buyers, placed)

		for _, p := range []*models.Product{a, b} {
			got, err := s.Products().Get(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 1000-placed, got.Stock)
		}
	})
}

// placeConcurrently releases one Place per user id at the same moment.
func placeConcurrently(ctx context.Context, orders *service.OrderService, users []uuid.UUID) []error {
	errs := make([]error, len(users))
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i, id := range users {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			<-start
			_, errs[i] = orders.Place(ctx, id)
		}(i, id)
	}
	close(start)
	wg.Wait()
	return errs
}
