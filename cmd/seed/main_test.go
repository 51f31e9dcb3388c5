package main

import (
	"context"
	"testing"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store/memory"
	"github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeed_Idempotent(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, seed(ctx, s, "admin@shop.com", "Admin123!"))
	require.NoError(t, seed(ctx, s, "admin@shop.com", "Admin123!"))

	admin, err := s.Accounts().FindByEmail(ctx, "admin@shop.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, hash.CheckPassword(admin.PasswordHash, "Admin123!"))

	n, err := s.Accounts().CountByRole(ctx, models.RoleAdmin)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	items, total, err := s.Products().List(ctx, 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	names := []string{items[0].Name, items[1].Name}
	assert.ElementsMatch(t, []string{"Gaming Laptop", "Wireless Headphones"}, names)
}
