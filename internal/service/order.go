package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/Skotchmaster/storefront/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const blockedMessage = "Your account has been blocked due to excessive order cancellations"

type OrderService struct {
	Store   store.Store
	Policy  BlockPolicy
	Events  events.Publisher
	Metrics *metrics.Shop
}

type CancelResult struct {
	Order                *models.Order
	CancelledOrdersCount int
	IsBlocked            bool
	Warning              string
}

// Place turns the user's cart into a PENDING order in one unit of work:
// order and snapshot lines are written, stock is decremented and the cart emptied.
func (s *OrderService) Place(ctx context.Context, userID uuid.UUID) (order *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.place", trace.WithAttributes(attribute.String("user.id", userID.String())))
	defer endSpan(span, &err)

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account, err := tx.Accounts().Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ErrUnauthorized, "User not found")
	}
	if err != nil {
		return nil, fromStore(err, "get account")
	}
	if account.IsBlocked {
		return nil, fail(ErrForbidden, blockedMessage)
	}

	cart, err := tx.Carts().FindForUpdate(ctx, userID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && len(cart.Items) == 0) {
		return nil, fail(ErrValidation, "Cart is empty")
	}
	if err != nil {
		return nil, fromStore(err, "find cart")
	}

	for _, it := range cart.Items {
		if it.Product == nil {
			return nil, fail(ErrNotFound, "Product not found")
		}
		if it.Product.Stock < it.Quantity {
			s.Metrics.StockConflict()
			return nil, fail(ErrConflict, "Insufficient stock for %s. Available: %d", it.Product.Name, it.Product.Stock)
		}
	}

	order = &models.Order{
		UserID:      userID,
		Status:      models.StatusPending,
		TotalAmount: cartTotal(cart.Items),
		Items:       make([]models.OrderItem, 0, len(cart.Items)),
	}
	for _, it := range cart.Items {
		order.Items = append(order.Items, models.OrderItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Product.Price,
		})
	}
	if err := tx.Orders().Create(ctx, order); err != nil {
		return nil, fromStore(err, "create order")
	}

	for _, it := range lockOrder(cart.Items, func(it models.CartItem) uuid.UUID { return it.ProductID }) {
		err := tx.Products().AdjustStock(ctx, it.ProductID, -it.Quantity)
		if errors.Is(err, store.ErrInsufficientStock) {
			s.Metrics.StockConflict()
			available := 0
			if p, gerr := tx.Products().Get(ctx, it.ProductID); gerr == nil {
				available = p.Stock
			}
			return nil, fail(ErrConflict, "Insufficient stock for %s. Available: %d", it.Product.Name, available)
		}
		if err != nil {
			return nil, fromStore(err, "decrement stock")
		}
	}

	if err := tx.Carts().Clear(ctx, cart.ID); err != nil {
		return nil, fromStore(err, "clear cart")
	}

	placed, err := tx.Orders().GetForUser(ctx, userID, order.ID)
	if err != nil {
		return nil, fromStore(err, "reload order")
	}
	if err := tx.Commit(); err != nil {
		return nil, fromStore(err, "commit order")
	}

	span.SetAttributes(attribute.String("order.id", placed.ID.String()))
	s.Metrics.OrderPlaced()
	s.publish(ctx, orderEvent(events.OrderPlaced, placed))
	return placed, nil
}

func (s *OrderService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders, err := s.Store.Orders().ListForUser(ctx, userID)
	return orders, fromStore(err, "list orders")
}

func (s *OrderService) ListAll(ctx context.Context) ([]models.Order, error) {
	orders, err := s.Store.Orders().ListAll(ctx)
	return orders, fromStore(err, "list all orders")
}

func (s *OrderService) Get(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Store.Orders().GetForUser(ctx, userID, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ErrNotFound, "Order not found")
	}
	if err != nil {
		return nil, fromStore(err, "get order")
	}
	return order, nil
}

// UpdateStatus is the administrative transition. It follows the same table
// as the customer path; an admin cancellation restores stock but does not
// count against the customer.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, raw string) (order *models.Order, err error) {
	ctx, span := tracer.Start(ctx, "order.update_status", trace.WithAttributes(
		attribute.String("order.id", orderID.String()),
		attribute.String("order.status", raw),
	))
	defer endSpan(span, &err)

	next, ok := models.ParseStatus(raw)
	if !ok {
		return nil, fail(ErrValidation, "Invalid status. Must be one of: %s", models.StatusNames())
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	current, err := tx.Orders().Get(ctx, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ErrNotFound, "Order not found")
	}
	if err != nil {
		return nil, fromStore(err, "get order")
	}
	if !current.Status.CanTransitionTo(next) {
		return nil, fail(ErrValidation, "Cannot change order status from %s to %s", current.Status, next)
	}

	if err := s.transition(ctx, tx, current, next); err != nil {
		return nil, err
	}
	if next == models.StatusCancelled {
		if err := restoreStock(ctx, tx, current); err != nil {
			return nil, err
		}
	}

	order, err = tx.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, fromStore(err, "reload order")
	}
	if err := tx.Commit(); err != nil {
		return nil, fromStore(err, "commit status")
	}

	s.Metrics.StatusChanged(string(next))
	s.publish(ctx, orderEvent(events.OrderStatusChanged, order))
	return order, nil
}

// Cancel is the customer path. In one unit of work it cancels the order,
// restores stock, bumps the cancellation counter and applies the block policy.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID uuid.UUID) (res *CancelResult, err error) {
	ctx, span := tracer.Start(ctx, "order.cancel", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("order.id", orderID.String()),
	))
	defer endSpan(span, &err)

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	order, err := tx.Orders().GetForUser(ctx, userID, orderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ErrNotFound, "Order not found")
	}
	if err != nil {
		return nil, fromStore(err, "get order")
	}

	switch order.Status {
	case models.StatusCancelled:
		return nil, fail(ErrValidation, "Order is already cancelled")
	case models.StatusDelivered:
		return nil, fail(ErrValidation, "Cannot cancel delivered order")
	case models.StatusShipped:
		return nil, fail(ErrValidation, "Cannot cancel shipped order. Please contact support.")
	}

	if err := s.transition(ctx, tx, order, models.StatusCancelled); err != nil {
		return nil, err
	}
	if err := restoreStock(ctx, tx, order); err != nil {
		return nil, err
	}

	account, err := tx.Accounts().IncrementCancelled(ctx, userID)
	if err != nil {
		return nil, fromStore(err, "count cancellation")
	}
	blockedNow := s.Policy.ShouldBlock(account.CancelledOrdersCount, account.IsBlocked)
	if blockedNow {
		if err := tx.Accounts().Block(ctx, userID); err != nil {
			return nil, fromStore(err, "block account")
		}
		account.IsBlocked = true
	}

	cancelled, err := tx.Orders().GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, fromStore(err, "reload order")
	}
	if err := tx.Commit(); err != nil {
		return nil, fromStore(err, "commit cancellation")
	}

	s.Metrics.OrderCancelled()
	s.publish(ctx, orderEvent(events.OrderCancelled, cancelled))
	if blockedNow {
		logging.FromContext(ctx).Warn("account_blocked", "user_id", userID, "cancelled_orders", account.CancelledOrdersCount)
		s.Metrics.AccountBlocked()
		s.publish(ctx, published{
			topic: events.TopicUsers,
			key:   userID.String(),
			event: events.AccountEvent{
				Type:                 events.AccountBlocked,
				UserID:               userID.String(),
				Email:                account.Email,
				CancelledOrdersCount: account.CancelledOrdersCount,
				At:                   time.Now().UTC(),
			},
		})
	}

	return &CancelResult{
		Order:                cancelled,
		CancelledOrdersCount: account.CancelledOrdersCount,
		IsBlocked:            account.IsBlocked,
		Warning:              s.Policy.Warning(account.CancelledOrdersCount),
	}, nil
}

func (s *OrderService) transition(ctx context.Context, tx store.Tx, order *models.Order, next models.OrderStatus) error {
	err := tx.Orders().TransitionStatus(ctx, order.ID, order.Status, next)
	if errors.Is(err, store.ErrStaleStatus) {
		return fail(ErrConflict, "Order status changed concurrently, please retry")
	}
	return fromStore(err, "transition order")
}

func restoreStock(ctx context.Context, tx store.Tx, order *models.Order) error {
	for _, it := range lockOrder(order.Items, func(it models.OrderItem) uuid.UUID { return it.ProductID }) {
		if err := tx.Products().AdjustStock(ctx, it.ProductID, it.Quantity); err != nil {
			return fromStore(err, fmt.Sprintf("restore stock for %s", it.ProductID))
		}
	}
	return nil
}

// lockOrder returns a copy sorted by product id. Every transaction that
// touches stock updates product rows in this order, so two of them never
// wait on each other's row locks.
func lockOrder[T any](items []T, product func(T) uuid.UUID) []T {
	out := slices.Clone(items)
	slices.SortFunc(out, func(a, b T) int {
		pa, pb := product(a), product(b)
		return bytes.Compare(pa[:], pb[:])
	})
	return out
}

type published struct {
	topic string
	key   string
	event any
}

func orderEvent(kind string, o *models.Order) published {
	lines := make([]events.OrderLine, len(o.Items))
	for i, it := range o.Items {
		lines[i] = events.OrderLine{ProductID: it.ProductID.String(), Quantity: it.Quantity, Price: it.Price.StringFixed(2)}
	}
	return published{
		topic: events.TopicOrders,
		key:   o.ID.String(),
		event: events.OrderEvent{
			Type:    kind,
			OrderID: o.ID.String(),
			UserID:  o.UserID.String(),
			Status:  string(o.Status),
			Total:   o.TotalAmount.StringFixed(2),
			Items:   lines,
			At:      time.Now().UTC(),
		},
	}
}

// publish runs after commit; a broker failure is logged and never undoes the workflow.
func (s *OrderService) publish(ctx context.Context, p published) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishEvent(ctx, p.topic, p.key, p.event); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "topic", p.topic, "key", p.key, "error", err)
	}
}
