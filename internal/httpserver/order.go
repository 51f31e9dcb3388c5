package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) Place(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.place")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	order, err := h.Svc.Place(ctx, userID)
	if err != nil {
		return failed(l, "place_order_error", err)
	}

	l.Info("place_order_success", "order_id", order.ID, "total", order.TotalAmount.StringFixed(2))
	return respond(c, http.StatusCreated, order, "Order placed successfully")
}

func (h *OrderHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	orders, err := h.Svc.ListForUser(ctx, userID)
	if err != nil {
		return failed(l, "list_orders_error", err)
	}
	return respondList(c, http.StatusOK, orders)
}

func (h *OrderHTTP) ListAll(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list_all")

	orders, err := h.Svc.ListAll(ctx)
	if err != nil {
		return failed(l, "list_all_orders_error", err)
	}
	return respondList(c, http.StatusOK, orders)
}

func (h *OrderHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		// an unparsable id cannot name anyone's order
		l.Warn("get_order_error", "status", http.StatusNotFound, "reason", "invalid id")
		return echo.NewHTTPError(http.StatusNotFound, "Order not found")
	}

	order, err := h.Svc.Get(ctx, userID, orderID)
	if err != nil {
		return failed(l, "get_order_error", err)
	}
	return respond(c, http.StatusOK, order, "")
}

func (h *OrderHTTP) Cancel(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel")

	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("cancel_order_error", "status", http.StatusNotFound, "reason", "invalid id")
		return echo.NewHTTPError(http.StatusNotFound, "Order not found")
	}

	res, err := h.Svc.Cancel(ctx, userID, orderID)
	if err != nil {
		return failed(l, "cancel_order_error", err)
	}

	l.Info("cancel_order_success", "order_id", orderID, "cancelled_orders", res.CancelledOrdersCount, "blocked", res.IsBlocked)
	return respond(c, http.StatusOK, transport.CancelOrderResponse{
		CancelledOrdersCount: res.CancelledOrdersCount,
		IsBlocked:            res.IsBlocked,
	}, "Order cancelled successfully."+res.Warning)
}

func (h *OrderHTTP) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update_status")

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		l.Warn("update_status_error", "status", http.StatusNotFound, "reason", "invalid id")
		return echo.NewHTTPError(http.StatusNotFound, "Order not found")
	}
	var req transport.UpdateOrderStatusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "update_status_error", "invalid body", err)
	}

	order, err := h.Svc.UpdateStatus(ctx, orderID, req.Status)
	if err != nil {
		return failed(l, "update_status_error", err)
	}

	l.Info("update_status_success", "order_id", orderID, "order_status", order.Status)
	return respond(c, http.StatusOK, order, "Order status updated to "+string(order.Status))
}
