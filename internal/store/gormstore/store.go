// Package gormstore implements the store ports on top of gorm.
package gormstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type Store struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{DB: db}
}

func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Products() store.ProductRepo { return &productRepo{db: s.DB} }
func (s *Store) Carts() store.CartRepo       { return &cartRepo{db: s.DB} }
func (s *Store) Orders() store.OrderRepo     { return &orderRepo{db: s.DB} }
func (s *Store) Accounts() store.AccountRepo { return &accountRepo{db: s.DB} }
func (s *Store) Tokens() store.TokenRepo     { return &tokenRepo{db: s.DB} }

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	tx := s.DB.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin tx: %w", tx.Error)
	}
	return &Tx{Store: Store{DB: tx}}, nil
}

type Tx struct {
	Store
	done bool
}

func (t *Tx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	return translate(t.DB.Commit().Error)
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.DB.Rollback().Error
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", store.ErrDuplicate, err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return fmt.Errorf("%w: %v", store.ErrReferenced, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == pgDeadlockDetected || pgErr.Code == pgSerializationFailure) {
		return fmt.Errorf("%w: %v", store.ErrContention, err)
	}
	return err
}
