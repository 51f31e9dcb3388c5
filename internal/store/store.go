// Package store defines the persistence ports used by the service layer and
// the unit of work that scopes several repository calls into one atomic change.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrDuplicate         = errors.New("duplicate key")
	ErrReferenced        = errors.New("record is referenced")
	// ErrStaleStatus means the order left the expected status before the update landed.
	ErrStaleStatus = errors.New("order status changed concurrently")
	// ErrContention is a deadlock or serialization abort; retrying may succeed.
	ErrContention = errors.New("transaction aborted by contention")
)

type ProductRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	List(ctx context.Context, offset, limit int) ([]models.Product, int64, error)
	SearchByName(ctx context.Context, q string, offset, limit int) ([]models.Product, int64, error)
	Create(ctx context.Context, p *models.Product) error
	Save(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	// AdjustStock applies delta in a single conditional update and fails with
	// ErrInsufficientStock instead of letting stock drop below zero.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) error
}

type CartRepo interface {
	// GetOrCreate returns the user's cart with items and products, creating an empty one if needed.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Find(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	// FindForUpdate is Find with the cart row locked until the unit of work ends.
	FindForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Item(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	// AddItem inserts the line or adds quantity to the existing one.
	AddItem(ctx context.Context, cartID, productID uuid.UUID, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID) error
	Clear(ctx context.Context, cartID uuid.UUID) error
}

type OrderRepo interface {
	Create(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	ListAll(ctx context.Context) ([]models.Order, error)
	// TransitionStatus moves the order from one status to another and
	// returns ErrStaleStatus when it is no longer in from.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error
}

type AccountRepo interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	CountByRole(ctx context.Context, role models.Role) (int64, error)
	// IncrementCancelled bumps the cancellation counter and returns the updated account.
	IncrementCancelled(ctx context.Context, id uuid.UUID) (*models.User, error)
	Block(ctx context.Context, id uuid.UUID) error
}

type TokenRepo interface {
	Revoke(ctx context.Context, t *models.RevokedToken) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type Repos interface {
	Products() ProductRepo
	Carts() CartRepo
	Orders() OrderRepo
	Accounts() AccountRepo
	Tokens() TokenRepo
}

// Tx is one unit of work. Rollback after Commit is a no-op, so callers can
// always defer it.
type Tx interface {
	Repos
	Commit() error
	Rollback() error
}

type Store interface {
	Repos
	Begin(ctx context.Context) (Tx, error)
}
