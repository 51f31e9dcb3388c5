package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/Skotchmaster/storefront/internal/store/gormstore"
	"github.com/Skotchmaster/storefront/pkg/config"
	"github.com/Skotchmaster/storefront/pkg/db"
	"github.com/Skotchmaster/storefront/pkg/hash"
	"github.com/Skotchmaster/storefront/pkg/logging"
)

var demoProducts = []models.Product{
	{
		Name:        "Gaming Laptop",
		Description: "High-performance laptop for gaming",
		Price:       decimal.RequireFromString("1499.99"),
		Stock:       25,
	},
	{
		Name:        "Wireless Headphones",
		Description: "Noise-cancelling Bluetooth headphones",
		Price:       decimal.RequireFromString("199.99"),
		Stock:       100,
	},
}

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	logger := logging.New(cfg.LogLevel).With("cmd", "seed")

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close(gdb)
	if err := gormstore.Migrate(ctx, gdb); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	if err := seed(ctx, gormstore.New(gdb), cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
		log.Fatalf("seed error: %v", err)
	}
	logger.Info("seed_complete", "admin", cfg.SeedAdminEmail)
}

// seed creates the admin and the demo catalog. Rows that already exist are left alone.
func seed(ctx context.Context, s store.Store, adminEmail, adminPassword string) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Accounts().FindByEmail(ctx, adminEmail)
	switch {
	case errors.Is(err, store.ErrNotFound):
		pw, err := hash.HashPassword(adminPassword)
		if err != nil {
			return err
		}
		admin := &models.User{Email: adminEmail, PasswordHash: pw, Role: models.RoleAdmin, FirstName: "Admin", LastName: "User"}
		if err := tx.Accounts().Create(ctx, admin); err != nil {
			return err
		}
	case err != nil:
		return err
	}

	for _, p := range demoProducts {
		_, total, err := tx.Products().SearchByName(ctx, p.Name, 0, 1)
		if err != nil {
			return err
		}
		if total > 0 {
			continue
		}
		if err := tx.Products().Create(ctx, &p); err != nil {
			return err
		}
	}
	return tx.Commit()
}
