package service

import (
	"context"
	"errors"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CartService struct {
	Store store.Store
}

type CartView struct {
	models.Cart
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

func cartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if it.Product == nil {
			continue
		}
		total = total.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total.Round(2)
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*CartView, error) {
	cart, err := s.Store.Carts().GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fromStore(err, "get cart")
	}
	return &CartView{Cart: *cart, Total: cartTotal(cart.Items), ItemCount: len(cart.Items)}, nil
}

// AddItem upserts a cart line. Stock is checked against the running cart
// quantity here, but only order placement reserves it.
func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.CartItem, error) {
	if productID == uuid.Nil {
		return nil, fail(ErrValidation, "productId is required")
	}
	if quantity < 1 {
		return nil, fail(ErrValidation, "Quantity must be at least 1")
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	product, err := tx.Products().Get(ctx, productID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ErrNotFound, "Product not found")
	}
	if err != nil {
		return nil, fromStore(err, "get product")
	}
	if product.Stock < quantity {
		return nil, fail(ErrConflict, "Insufficient stock. Available: %d", product.Stock)
	}

	if _, err := tx.Carts().GetOrCreate(ctx, userID); err != nil {
		return nil, fromStore(err, "get cart")
	}
	// waits out a placement that is emptying this cart
	cart, err := tx.Carts().FindForUpdate(ctx, userID)
	if err != nil {
		return nil, fromStore(err, "lock cart")
	}

	existing, err := tx.Carts().Item(ctx, cart.ID, productID)
	switch {
	case err == nil:
		if existing.Quantity+quantity > product.Stock {
			return nil, fail(ErrConflict, "Cannot add %d more. Available: %d, Already in cart: %d",
				quantity, product.Stock, existing.Quantity)
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, fromStore(err, "get cart item")
	}

	item, err := tx.Carts().AddItem(ctx, cart.ID, productID, quantity)
	if err != nil {
		return nil, fromStore(err, "add cart item")
	}
	if err := tx.Commit(); err != nil {
		return nil, fromStore(err, "commit add cart item")
	}
	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) error {
	cart, err := s.Store.Carts().Find(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(ErrNotFound, "Cart not found")
	}
	if err != nil {
		return fromStore(err, "find cart")
	}

	err = s.Store.Carts().RemoveItem(ctx, cart.ID, productID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(ErrNotFound, "Item not found in cart")
	}
	return fromStore(err, "remove cart item")
}

func (s *CartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.Store.Carts().Find(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return fail(ErrNotFound, "Cart not found")
	}
	if err != nil {
		return fromStore(err, "find cart")
	}
	return fromStore(s.Store.Carts().Clear(ctx, cart.ID), "clear cart")
}
