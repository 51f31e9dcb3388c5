package httpserver

import (
	"context"
	"net/http"

	authmw "github.com/Skotchmaster/storefront/pkg/middleware/auth"
	"github.com/labstack/echo/v4"
)

type Deps struct {
	AuthHandler    *AuthHTTP
	ProductHandler *ProductHTTP
	CartHandler    *CartHTTP
	OrderHandler   *OrderHTTP
	Auth           *authmw.Auth
	// Ready reports whether dependencies such as the database are reachable.
	Ready   func(ctx context.Context) error
	Metrics http.Handler
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "not ready")
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	requireAuth := d.Auth.RequireAuth

	auth := e.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/logout", d.AuthHandler.Logout, requireAuth)
	auth.GET("/me", d.AuthHandler.Me, requireAuth)

	products := e.Group("/products")
	products.GET("", d.ProductHandler.List)
	products.GET("/search", d.ProductHandler.Search)
	products.GET("/:id", d.ProductHandler.Get)

	adminProducts := products.Group("", requireAuth, authmw.RequireAdmin)
	adminProducts.POST("", d.ProductHandler.Create)
	adminProducts.PATCH("/:id", d.ProductHandler.Patch)
	adminProducts.DELETE("/:id", d.ProductHandler.Delete)

	cart := e.Group("/cart", requireAuth, authmw.RequireCustomer)
	cart.GET("", d.CartHandler.Get)
	cart.DELETE("", d.CartHandler.Clear)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.DELETE("/items/:productId", d.CartHandler.RemoveItem)

	orders := e.Group("/orders", requireAuth)
	orders.POST("", d.OrderHandler.Place, authmw.RequireCustomer)
	orders.GET("", d.OrderHandler.List)
	orders.GET("/admin/all", d.OrderHandler.ListAll, authmw.RequireAdmin)
	orders.GET("/:id", d.OrderHandler.Get)
	orders.PATCH("/:id/cancel", d.OrderHandler.Cancel, authmw.RequireCustomer)
	orders.PATCH("/:id/status", d.OrderHandler.UpdateStatus, authmw.RequireAdmin)
}
