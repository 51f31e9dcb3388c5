package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/Skotchmaster/storefront/internal/util"
	"github.com/Skotchmaster/storefront/pkg/events"
	"github.com/Skotchmaster/storefront/pkg/logging"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductIndex is an optional full-text index kept in step with the catalog.
type ProductIndex interface {
	Index(ctx context.Context, p *models.Product) error
	Remove(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, q string, offset, limit int) ([]uuid.UUID, int64, error)
}

type CatalogService struct {
	Store  store.Store
	Index  ProductIndex
	Events events.Publisher
}

type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

type ProductPage struct {
	Products   []models.Product `json:"products"`
	Pagination Pagination       `json:"pagination"`
}

type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
}

// ProductPatch holds the fields of a partial update; nil means unchanged.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	ImageURL    *string
}

func newPage(items []models.Product, total int64, page, limit int) *ProductPage {
	if items == nil {
		items = []models.Product{}
	}
	if page < 1 {
		page = 1
	}
	return &ProductPage{
		Products: items,
		Pagination: Pagination{
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: util.TotalPages(total, limit),
		},
	}
}

func (s *CatalogService) List(ctx context.Context, page, size int) (*ProductPage, error) {
	offset, limit := util.Calculate(page, size)
	items, total, err := s.Store.Products().List(ctx, offset, limit)
	if err != nil {
		return nil, fromStore(err, "list products")
	}
	return newPage(items, total, page, limit), nil
}

func (s *CatalogService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, err := s.Store.Products().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fail(ErrNotFound, "Product not found")
	}
	if err != nil {
		return nil, fromStore(err, "get product")
	}
	return p, nil
}

// Search queries the index when one is configured and falls back to a name
// match in the store when it is absent or failing.
func (s *CatalogService) Search(ctx context.Context, q string, page, size int) (*ProductPage, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, fail(ErrValidation, "Search query is required")
	}
	offset, limit := util.Calculate(page, size)

	if s.Index != nil {
		ids, total, err := s.Index.Search(ctx, q, offset, limit)
		if err == nil {
			items := make([]models.Product, 0, len(ids))
			for _, id := range ids {
				p, err := s.Store.Products().Get(ctx, id)
				if errors.Is(err, store.ErrNotFound) {
					continue
				}
				if err != nil {
					return nil, fromStore(err, "get product")
				}
				items = append(items, *p)
			}
			return newPage(items, total, page, limit), nil
		}
		logging.FromContext(ctx).Warn("product_search_fallback", "query", q, "error", err)
	}

	items, total, err := s.Store.Products().SearchByName(ctx, q, offset, limit)
	if err != nil {
		return nil, fromStore(err, "search products")
	}
	return newPage(items, total, page, limit), nil
}

func validateProduct(name string, price decimal.Decimal, stock int) error {
	if strings.TrimSpace(name) == "" {
		return fail(ErrValidation, "Name is required")
	}
	if price.IsNegative() {
		return fail(ErrValidation, "Price cannot be negative")
	}
	if stock < 0 {
		return fail(ErrValidation, "Stock cannot be negative")
	}
	return nil
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput) (*models.Product, error) {
	if err := validateProduct(in.Name, in.Price, in.Stock); err != nil {
		return nil, err
	}
	p := &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price.Round(2),
		Stock:       in.Stock,
		ImageURL:    in.ImageURL,
	}
	if err := s.Store.Products().Create(ctx, p); err != nil {
		return nil, fromStore(err, "create product")
	}
	s.sync(ctx, events.ProductCreated, p)
	return p, nil
}

func (s *CatalogService) Update(ctx context.Context, id uuid.UUID, patch ProductPatch) (*models.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != nil {
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Price != nil {
		p.Price = patch.Price.Round(2)
	}
	if patch.Stock != nil {
		p.Stock = *patch.Stock
	}
	if patch.ImageURL != nil {
		p.ImageURL = *patch.ImageURL
	}
	if err := validateProduct(p.Name, p.Price, p.Stock); err != nil {
		return nil, err
	}

	if err := s.Store.Products().Save(ctx, p); err != nil {
		return nil, fromStore(err, "save product")
	}
	s.sync(ctx, events.ProductUpdated, p)
	return p, nil
}

func (s *CatalogService) Delete(ctx context.Context, id uuid.UUID) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.Store.Products().Delete(ctx, id)
	if errors.Is(err, store.ErrReferenced) {
		return fail(ErrConflict, "Product is referenced by existing carts or orders")
	}
	if err != nil {
		return fromStore(err, "delete product")
	}
	s.sync(ctx, events.ProductDeleted, p)
	return nil
}

// sync pushes a committed catalog change to the index and the event bus.
// Failures are logged; the database stays the source of truth.
func (s *CatalogService) sync(ctx context.Context, kind string, p *models.Product) {
	l := logging.FromContext(ctx)

	if s.Index != nil {
		var err error
		if kind == events.ProductDeleted {
			err = s.Index.Remove(ctx, p.ID)
		} else {
			err = s.Index.Index(ctx, p)
		}
		if err != nil {
			l.Warn("product_index_error", "product_id", p.ID, "event", kind, "error", err)
		}
	}

	if s.Events == nil {
		return
	}
	ev := events.ProductEvent{
		Type:      kind,
		ProductID: p.ID.String(),
		Name:      p.Name,
		Price:     p.Price.StringFixed(2),
		Stock:     p.Stock,
		At:        time.Now().UTC(),
	}
	if err := s.Events.PublishEvent(ctx, events.TopicProducts, ev.ProductID, ev); err != nil {
		l.Warn("publish_event_error", "topic", events.TopicProducts, "error", err)
	}
}
