package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"yoma-api/models"
)

type lookupRepository struct {
	db *gorm.DB
}

// listAll is the generic read used by every lookup table.
func listAll[T any](ctx context.Context, db *gorm.DB, order string, preloads ...string) ([]T, error) {
	q := db.WithContext(ctx).Order(order)
	for _, p := range preloads {
		q = q.Preload(p)
	}

	var items []T
	if err := q.Find(&items).Error; err != nil {
		var zero T
		return nil, fmt.Errorf("failed to list %T: %w", zero, mapError(err))
	}
	return items, nil
}

func (r *lookupRepository) Categories(ctx context.Context) ([]models.OpportunityCategory, error) {
	return listAll[models.OpportunityCategory](ctx, r.db, "name ASC")
}

func (r *lookupRepository) OpportunityTypes(ctx context.Context) ([]models.OpportunityType, error) {
	return listAll[models.OpportunityType](ctx, r.db, "name ASC")
}

func (r *lookupRepository) VerificationTypes(ctx context.Context) ([]models.VerificationTypeLookup, error) {
	return listAll[models.VerificationTypeLookup](ctx, r.db, "display_name ASC")
}

func (r *lookupRepository) SchemaEntities(ctx context.Context) ([]models.SSISchemaEntity, error) {
	return listAll[models.SSISchemaEntity](ctx, r.db, "type_name ASC", "Properties")
}
