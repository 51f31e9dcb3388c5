package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	cart, err := h.Svc.GetCart(ctx, userID)
	if err != nil {
		return failed(l, "get_cart_error", err)
	}
	return respond(c, http.StatusOK, cart, "")
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add_item")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	var req transport.AddCartItemRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "add_cart_item_error", "invalid body", err)
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		return badRequest(l, "add_cart_item_error", "productId must be a valid id", err)
	}

	item, err := h.Svc.AddItem(ctx, userID, productID, req.Quantity)
	if err != nil {
		return failed(l, "add_cart_item_error", err)
	}

	l.Info("add_cart_item_success", "product_id", productID, "quantity", req.Quantity)
	return respond(c, http.StatusCreated, item, "Item added to cart successfully")
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove_item")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	productID, err := uuid.Parse(c.Param("productId"))
	if err != nil {
		return badRequest(l, "remove_cart_item_error", "Invalid product id", err)
	}

	if err := h.Svc.RemoveItem(ctx, userID, productID); err != nil {
		return failed(l, "remove_cart_item_error", err)
	}
	return respond(c, http.StatusOK, nil, "Item removed from cart successfully")
}

func (h *CartHTTP) Clear(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	if err := h.Svc.ClearCart(ctx, userID); err != nil {
		return failed(l, "clear_cart_error", err)
	}
	return respond(c, http.StatusOK, nil, "Cart cleared successfully")
}
