package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"yoma-api/models"
	"yoma-api/store"
)

type blobRepository struct {
	db *gorm.DB
}

func (r *blobRepository) Create(ctx context.Context, blob *models.BlobObject) error {
	if err := r.db.WithContext(ctx).Create(blob).Error; err != nil {
		return fmt.Errorf("failed to create blob object: %w", mapError(err))
	}
	return nil
}

func (r *blobRepository) Get(ctx context.Context, id uuid.UUID) (*models.BlobObject, error) {
	var blob models.BlobObject
	if err := r.db.WithContext(ctx).First(&blob, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &blob, nil
}

func (r *blobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.BlobObject{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete blob object: %w", mapError(res.Error))
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
