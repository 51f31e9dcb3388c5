package gormstore

import (
	"context"

	"github.com/Skotchmaster/storefront/internal/models"
	"github.com/Skotchmaster/storefront/internal/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type orderRepo struct {
	db *gorm.DB
}

func (r *orderRepo) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items.Product")
}

func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	return translate(r.db.WithContext(ctx).Create(o).Error)
}

func (r *orderRepo) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.withItems(ctx).Where("id = ?", id).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *orderRepo) GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Order, error) {
	var o models.Order
	if err := r.withItems(ctx).Where("id = ? AND user_id = ?", id, userID).First(&o).Error; err != nil {
		return nil, translate(err)
	}
	return &o, nil
}

func (r *orderRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.withItems(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	return orders, translate(err)
}

func (r *orderRepo) ListAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.withItems(ctx).Order("created_at DESC").Find(&orders).Error
	return orders, translate(err)
}

func (r *orderRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to models.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return store.ErrStaleStatus
}
