// Package memory is an in-process store used by service tests. A unit of work
// holds the store lock until it finishes and rolls back by restoring a snapshot.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/google/uuid"
)

type state struct {
	products  map[uuid.UUID]models.Product
	users     map[uuid.UUID]models.User
	carts     map[uuid.UUID]models.Cart
	cartItems map[uuid.UUID]models.CartItem
	orders    map[uuid.UUID]models.Order
	revoked   map[string]models.RevokedToken
	seq       map[uuid.UUID]int64
	next      int64
}

func newState() *state {
	return &state{
		products:  map[uuid.UUID]models.Product{},
		users:     map[uuid.UUID]models.User{},
		carts:     map[uuid.UUID]models.Cart{},
		cartItems: map[uuid.UUID]models.CartItem{},
		orders:    map[uuid.UUID]models.Order{},
		revoked:   map[string]models.RevokedToken{},
		seq:       map[uuid.UUID]int64{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	orders := make(map[uuid.UUID]models.Order, len(s.orders))
	for id, o := range s.orders {
		o.Items = append([]models.OrderItem(nil), o.Items...)
		orders[id] = o
	}
	return &state{
		products:  cloneMap(s.products),
		users:     cloneMap(s.users),
		carts:     cloneMap(s.carts),
		cartItems: cloneMap(s.cartItems),
		orders:    orders,
		revoked:   cloneMap(s.revoked),
		seq:       cloneMap(s.seq),
		next:      s.next,
	}
}

func (s *state) stamp(id uuid.UUID) {
	s.next++
	s.seq[id] = s.next
}

type Store struct {
	mu  sync.Mutex
	st  *state
	now func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// view runs repository calls either under the store lock or, inside a
// unit of work, under the lock the Tx already holds.
type view struct {
	s    *Store
	inTx bool
}

func (v view) do(fn func(st *state) error) error {
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn(v.s.st)
}

func (s *Store) repos(inTx bool) view { return view{s: s, inTx: inTx} }

func (s *Store) Products() store.ProductRepo { return &productRepo{s.repos(false)} }
func (s *Store) Carts() store.CartRepo       { return &cartRepo{s.repos(false)} }
func (s *Store) Orders() store.OrderRepo     { return &orderRepo{s.repos(false)} }
func (s *Store) Accounts() store.AccountRepo { return &accountRepo{s.repos(false)} }
func (s *Store) Tokens() store.TokenRepo     { return &tokenRepo{s.repos(false)} }

func (s *Store) Begin(ctx context.Context) (store.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	return &Tx{s: s, snapshot: s.st.clone()}, nil
}

type Tx struct {
	s        *Store
	snapshot *state
	done     bool
}

func (t *Tx) Products() store.ProductRepo { return &productRepo{t.s.repos(true)} }
func (t *Tx) Carts() store.CartRepo       { return &cartRepo{t.s.repos(true)} }
func (t *Tx) Orders() store.OrderRepo     { return &orderRepo{t.s.repos(true)} }
func (t *Tx) Accounts() store.AccountRepo { return &accountRepo{t.s.repos(true)} }
func (t *Tx) Tokens() store.TokenRepo     { return &tokenRepo{t.s.repos(true)} }

func (t *Tx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	t.snapshot = nil
	t.s.mu.Unlock()
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.s.st = t.snapshot
	t.s.mu.Unlock()
	return nil
}
