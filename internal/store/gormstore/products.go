package gormstore

import (
	"context"
	"strings"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type productRepo struct {
	db *gorm.DB
}

func (r *productRepo) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *productRepo) List(ctx context.Context, offset, limit int) ([]models.Product, int64, error) {
	return r.page(ctx, r.db.WithContext(ctx).Model(&models.Product{}), offset, limit)
}

func (r *productRepo) SearchByName(ctx context.Context, q string, offset, limit int) ([]models.Product, int64, error) {
	like := "%" + strings.ToLower(q) + "%"
	scope := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	return r.page(ctx, scope, offset, limit)
}

func (r *productRepo) page(ctx context.Context, scope *gorm.DB, offset, limit int) ([]models.Product, int64, error) {
	var total int64
	if err := scope.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	items := make([]models.Product, 0, limit)
	if err := scope.Session(&gorm.Session{}).
		Order("created_at DESC").Order("id").
		Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *productRepo) Create(ctx context.Context, p *models.Product) error {
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *productRepo) Save(ctx context.Context, p *models.Product) error {
	return translate(r.db.WithContext(ctx).Save(p).Error)
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *productRepo) AdjustStock(ctx context.Context, id uuid.UUID, delta int) error {
	q := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id)
	if delta < 0 {
		q = q.Where("stock >= ?", -delta)
	}

	res := q.UpdateColumn("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrInsufficientStock
}
