package httpserver

import (
	"net/http"

	"github.com/Skotchmaster/storefront/internal/service"
	"github.com/Skotchmaster/storefront/internal/transport"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type ProductHTTP struct {
	Svc *service.CatalogService
}

func pageParams(c echo.Context) (int, int) {
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	limit := util.ParseIntDefault(c.QueryParam("limit"), util.DefaultPageSize)
	return page, limit
}

func (h *ProductHTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.list")

	page, limit := pageParams(c)
	res, err := h.Svc.List(ctx, page, limit)
	if err != nil {
		return failed(l, "list_products_error", err)
	}
	return respond(c, http.StatusOK, res, "")
}

func (h *ProductHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.search")

	page, limit := pageParams(c)
	res, err := h.Svc.Search(ctx, c.QueryParam("q"), page, limit)
	if err != nil {
		return failed(l, "search_products_error", err)
	}
	return respond(c, http.StatusOK, res, "")
}

func (h *ProductHTTP) Get(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "get_product_error", "Invalid product id", err)
	}
	p, err := h.Svc.Get(ctx, id)
	if err != nil {
		return failed(l, "get_product_error", err)
	}
	return respond(c, http.StatusOK, p, "")
}

func (h *ProductHTTP) Create(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	var req transport.CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "create_product_error", "invalid body", err)
	}

	p, err := h.Svc.Create(ctx, service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return failed(l, "create_product_error", err)
	}

	l.Info("create_product_success", "product_id", p.ID)
	return respond(c, http.StatusCreated, p, "Product created successfully")
}

func (h *ProductHTTP) Patch(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.patch")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "patch_product_error", "Invalid product id", err)
	}
	var req transport.PatchProductRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(l, "patch_product_error", "invalid body", err)
	}

	p, err := h.Svc.Update(ctx, id, service.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return failed(l, "patch_product_error", err)
	}

	l.Info("patch_product_success", "product_id", p.ID)
	return respond(c, http.StatusOK, p, "Product updated successfully")
}

func (h *ProductHTTP) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete")

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest(l, "delete_product_error", "Invalid product id", err)
	}
	if err := h.Svc.Delete(ctx, id); err != nil {
		return failed(l, "delete_product_error", err)
	}

	l.Info("delete_product_success", "product_id", id)
	return respond(c, http.StatusOK, nil, "Product deleted successfully")
}
