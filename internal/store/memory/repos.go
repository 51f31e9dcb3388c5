package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/google/uuid"
)

// newestFirst orders by creation time, then by insertion order.
func newestFirst[T any](st *state, items []T, at func(T) time.Time, id func(T) uuid.UUID) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := at(items[i]), at(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return st.seq[id(items[i])] > st.seq[id(items[j])]
	})
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

type productRepo struct{ v view }

func (r *productRepo) Get(_ context.Context, id uuid.UUID) (*models.Product, error) {
	var out *models.Product
	err := r.v.do(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &p
		return nil
	})
	return out, err
}

func (r *productRepo) list(match func(models.Product) bool, offset, limit int) ([]models.Product, int64, error) {
	var (
		out   []models.Product
		total int64
	)
	err := r.v.do(func(st *state) error {
		all := make([]models.Product, 0, len(st.products))
		for _, p := range st.products {
			if match(p) {
				all = append(all, p)
			}
		}
		newestFirst(st, all,
			func(p models.Product) time.Time { return p.CreatedAt },
			func(p models.Product) uuid.UUID { return p.ID })
		total = int64(len(all))
		out = window(all, offset, limit)
		return nil
	})
	return out, total, err
}

func (r *productRepo) List(_ context.Context, offset, limit int) ([]models.Product, int64, error) {
	return r.list(func(models.Product) bool { return true }, offset, limit)
}

func (r *productRepo) SearchByName(_ context.Context, q string, offset, limit int) ([]models.Product, int64, error) {
	q = strings.ToLower(q)
	return r.list(func(p models.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Description), q)
	}, offset, limit)
}

func (r *productRepo) Create(_ context.Context, p *models.Product) error {
	return r.v.do(func(st *state) error {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		if _, ok := st.products[p.ID]; ok {
			return store.ErrDuplicate
		}
		now := r.v.s.now()
		p.CreatedAt, p.UpdatedAt = now, now
		st.products[p.ID] = *p
		st.stamp(p.ID)
		return nil
	})
}

func (r *productRepo) Save(_ context.Context, p *models.Product) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.products[p.ID]; !ok {
			st.stamp(p.ID)
		}
		p.UpdatedAt = r.v.s.now()
		st.products[p.ID] = *p
		return nil
	})
}

func (r *productRepo) Delete(_ context.Context, id uuid.UUID) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.products[id]; !ok {
			return store.ErrNotFound
		}
		for _, it := range st.cartItems {
			if it.ProductID == id {
				return store.ErrReferenced
			}
		}
		for _, o := range st.orders {
			for _, it := range o.Items {
				if it.ProductID == id {
					return store.ErrReferenced
				}
			}
		}
		delete(st.products, id)
		return nil
	})
}

func (r *productRepo) AdjustStock(_ context.Context, id uuid.UUID, delta int) error {
	return r.v.do(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return store.ErrNotFound
		}
		if p.Stock+delta < 0 {
			return store.ErrInsufficientStock
		}
		p.Stock += delta
		st.products[id] = p
		return nil
	})
}

type cartRepo struct{ v view }

func (st *state) cartByUser(userID uuid.UUID) (models.Cart, bool) {
	for _, c := range st.carts {
		if c.UserID == userID {
			return c, true
		}
	}
	return models.Cart{}, false
}

func (st *state) withProduct(it models.CartItem) models.CartItem {
	if p, ok := st.products[it.ProductID]; ok {
		it.Product = &p
	}
	return it
}

func (st *state) loadCart(c models.Cart) *models.Cart {
	c.Items = []models.CartItem{}
	for _, it := range st.cartItems {
		if it.CartID == c.ID {
			c.Items = append(c.Items, st.withProduct(it))
		}
	}
	sort.SliceStable(c.Items, func(i, j int) bool {
		return st.seq[c.Items[i].ID] < st.seq[c.Items[j].ID]
	})
	return &c
}

func (r *cartRepo) GetOrCreate(_ context.Context, userID uuid.UUID) (*models.Cart, error) {
	var out *models.Cart
	err := r.v.do(func(st *state) error {
		c, ok := st.cartByUser(userID)
		if !ok {
			now := r.v.s.now()
			c = models.Cart{ID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
			st.carts[c.ID] = c
			st.stamp(c.ID)
		}
		out = st.loadCart(c)
		return nil
	})
	return out, err
}

func (r *cartRepo) Find(_ context.Context, userID uuid.UUID) (*models.Cart, error) {
	var out *models.Cart
	err := r.v.do(func(st *state) error {
		c, ok := st.cartByUser(userID)
		if !ok {
			return store.ErrNotFound
		}
		out = st.loadCart(c)
		return nil
	})
	return out, err
}

// FindForUpdate needs no row lock: a memory transaction already holds the store.
func (r *cartRepo) FindForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return r.Find(ctx, userID)
}

func (st *state) findItem(cartID, productID uuid.UUID) (models.CartItem, bool) {
	for _, it := range st.cartItems {
		if it.CartID == cartID && it.ProductID == productID {
			return it, true
		}
	}
	return models.CartItem{}, false
}

func (r *cartRepo) Item(_ context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var out *models.CartItem
	err := r.v.do(func(st *state) error {
		it, ok := st.findItem(cartID, productID)
		if !ok {
			return store.ErrNotFound
		}
		it = st.withProduct(it)
		out = &it
		return nil
	})
	return out, err
}

func (r *cartRepo) AddItem(_ context.Context, cartID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	var out *models.CartItem
	err := r.v.do(func(st *state) error {
		if _, ok := st.carts[cartID]; !ok {
			return store.ErrReferenced
		}
		if _, ok := st.products[productID]; !ok {
			return store.ErrReferenced
		}
		it, ok := st.findItem(cartID, productID)
		if ok {
			it.Quantity += quantity
		} else {
			it = models.CartItem{
				ID:        uuid.New(),
				CartID:    cartID,
				ProductID: productID,
				Quantity:  quantity,
				CreatedAt: r.v.s.now(),
			}
			st.stamp(it.ID)
		}
		st.cartItems[it.ID] = it
		it = st.withProduct(it)
		out = &it
		return nil
	})
	return out, err
}

func (r *cartRepo) RemoveItem(_ context.Context, cartID, productID uuid.UUID) error {
	return r.v.do(func(st *state) error {
		it, ok := st.findItem(cartID, productID)
		if !ok {
			return store.ErrNotFound
		}
		delete(st.cartItems, it.ID)
		return nil
	})
}

func (r *cartRepo) Clear(_ context.Context, cartID uuid.UUID) error {
	return r.v.do(func(st *state) error {
		for id, it := range st.cartItems {
			if it.CartID == cartID {
				delete(st.cartItems, id)
			}
		}
		return nil
	})
}

type orderRepo struct{ v view }

func (st *state) loadOrder(o models.Order) models.Order {
	items := make([]models.OrderItem, len(o.Items))
	for i, it := range o.Items {
		if p, ok := st.products[it.ProductID]; ok {
			it.Product = &p
		}
		items[i] = it
	}
	o.Items = items
	return o
}

func (r *orderRepo) Create(_ context.Context, o *models.Order) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.users[o.UserID]; !ok {
			return store.ErrReferenced
		}
		if o.ID == uuid.Nil {
			o.ID = uuid.New()
		}
		now := r.v.s.now()
		o.CreatedAt, o.UpdatedAt = now, now
		for i := range o.Items {
			if _, ok := st.products[o.Items[i].ProductID]; !ok {
				return store.ErrReferenced
			}
			if o.Items[i].ID == uuid.Nil {
				o.Items[i].ID = uuid.New()
			}
			o.Items[i].OrderID = o.ID
		}
		saved := *o
		saved.Items = append([]models.OrderItem(nil), o.Items...)
		for i := range saved.Items {
			saved.Items[i].Product = nil
		}
		st.orders[o.ID] = saved
		st.stamp(o.ID)
		return nil
	})
}

func (r *orderRepo) get(match func(models.Order) bool) (*models.Order, error) {
	var out *models.Order
	err := r.v.do(func(st *state) error {
		for _, o := range st.orders {
			if match(o) {
				o = st.loadOrder(o)
				out = &o
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (r *orderRepo) Get(_ context.Context, id uuid.UUID) (*models.Order, error) {
	return r.get(func(o models.Order) bool { return o.ID == id })
}

func (r *orderRepo) GetForUser(_ context.Context, userID, id uuid.UUID) (*models.Order, error) {
	return r.get(func(o models.Order) bool { return o.ID == id && o.UserID == userID })
}

func (r *orderRepo) list(match func(models.Order) bool) ([]models.Order, error) {
	var out []models.Order
	err := r.v.do(func(st *state) error {
		out = []models.Order{}
		for _, o := range st.orders {
			if match(o) {
				out = append(out, st.loadOrder(o))
			}
		}
		newestFirst(st, out,
			func(o models.Order) time.Time { return o.CreatedAt },
			func(o models.Order) uuid.UUID { return o.ID })
		return nil
	})
	return out, err
}

func (r *orderRepo) ListForUser(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	return r.list(func(o models.Order) bool { return o.UserID == userID })
}

func (r *orderRepo) ListAll(_ context.Context) ([]models.Order, error) {
	return r.list(func(models.Order) bool { return true })
}

func (r *orderRepo) TransitionStatus(_ context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	return r.v.do(func(st *state) error {
		o, ok := st.orders[id]
		if !ok {
			return store.ErrNotFound
		}
		if o.Status != from {
			return store.ErrStaleStatus
		}
		o.Status = to
		o.UpdatedAt = r.v.s.now()
		st.orders[id] = o
		return nil
	})
}

type accountRepo struct{ v view }

func (r *accountRepo) Get(_ context.Context, id uuid.UUID) (*models.User, error) {
	var out *models.User
	err := r.v.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *accountRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	var out *models.User
	err := r.v.do(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				out = &u
				return nil
			}
		}
		return store.ErrNotFound
	})
	return out, err
}

func (r *accountRepo) Create(_ context.Context, u *models.User) error {
	return r.v.do(func(st *state) error {
		for _, existing := range st.users {
			if existing.Email == u.Email {
				return store.ErrDuplicate
			}
		}
		if u.ID == uuid.Nil {
			u.ID = uuid.New()
		}
		now := r.v.s.now()
		u.CreatedAt, u.UpdatedAt = now, now
		st.users[u.ID] = *u
		st.stamp(u.ID)
		return nil
	})
}

func (r *accountRepo) CountByRole(_ context.Context, role models.Role) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		for _, u := range st.users {
			if u.Role == role {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *accountRepo) IncrementCancelled(_ context.Context, id uuid.UUID) (*models.User, error) {
	var out *models.User
	err := r.v.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrNotFound
		}
		u.CancelledOrdersCount++
		st.users[id] = u
		out = &u
		return nil
	})
	return out, err
}

func (r *accountRepo) Block(_ context.Context, id uuid.UUID) error {
	return r.v.do(func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return store.ErrNotFound
		}
		u.IsBlocked = true
		st.users[id] = u
		return nil
	})
}

type tokenRepo struct{ v view }

func (r *tokenRepo) Revoke(_ context.Context, t *models.RevokedToken) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.revoked[t.JTI]; !ok {
			st.revoked[t.JTI] = *t
		}
		return nil
	})
}

func (r *tokenRepo) IsRevoked(_ context.Context, jti string) (bool, error) {
	var revoked bool
	err := r.v.do(func(st *state) error {
		_, revoked = st.revoked[jti]
		return nil
	})
	return revoked, err
}

func (r *tokenRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.v.do(func(st *state) error {
		for jti, t := range st.revoked {
			if t.ExpiresAt.Before(now) {
				delete(st.revoked, jti)
				n++
			}
		}
		return nil
	})
	return n, err
}
