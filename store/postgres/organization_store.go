package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yoma-api/models"
	"yoma-api/store"
)

type organizationRepository struct {
	db *gorm.DB
}

func (r *organizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if err := r.db.WithContext(ctx).Create(org).Error; err != nil {
		return fmt.Errorf("failed to create organization: %w", mapError(err))
	}
	return nil
}

func (r *organizationRepository) Update(ctx context.Context, org *models.Organization) error {
	if err := r.db.WithContext(ctx).Save(org).Error; err != nil {
		return fmt.Errorf("failed to update organization: %w", mapError(err))
	}
	return nil
}

func (r *organizationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *organizationRepository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *organizationRepository) GetByNameHash(ctx context.Context, hash string) (*models.Organization, error) {
	return r.first(ctx, "name_hash_value = ?", hash)
}

func (r *organizationRepository) first(ctx context.Context, query string, args ...any) (*models.Organization, error) {
	var org models.Organization
	if err := r.db.WithContext(ctx).Where(query, args...).First(&org).Error; err != nil {
		return nil, mapError(err)
	}
	return &org, nil
}

func (r *organizationRepository) Search(ctx context.Context, filter store.OrganizationFilter) ([]models.Organization, int64, error) {
	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Organization{})
		if filter.ValueContains != "" {
			q = q.Where("name ILIKE ?", likePattern(filter.ValueContains))
		}
		if len(filter.Statuses) > 0 {
			q = q.Where("status IN ?", filter.Statuses)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count organizations: %w", mapError(err))
	}

	var orgs []models.Organization
	if err := paginate(base().Order("name ASC"), filter.Page).Find(&orgs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search organizations: %w", mapError(err))
	}
	return orgs, total, nil
}

func (r *organizationRepository) AddAdmin(ctx context.Context, orgID, userID uuid.UUID) error {
	admin := models.OrganizationAdmin{OrganizationID: orgID, UserID: userID}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to add organization admin: %w", mapError(err))
	}
	return nil
}

func (r *organizationRepository) RemoveAdmin(ctx context.Context, orgID, userID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Delete(&models.OrganizationAdmin{}).Error; err != nil {
		return fmt.Errorf("failed to remove organization admin: %w", mapError(err))
	}
	return nil
}

func (r *organizationRepository) ListAdmins(ctx context.Context, orgID uuid.UUID) ([]models.User, error) {
	var users []models.User
	if err := r.db.WithContext(ctx).
		Joins("JOIN organization_admins oa ON oa.user_id = users.id").
		Where("oa.organization_id = ?", orgID).
		Order("users.email ASC").
		Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list organization admins: %w", mapError(err))
	}
	return users, nil
}

func (r *organizationRepository) IsAdmin(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.OrganizationAdmin{}).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check organization admin: %w", mapError(err))
	}
	return count > 0, nil
}

func (r *organizationRepository) ListByAdmin(ctx context.Context, userID uuid.UUID) ([]models.Organization, error) {
	var orgs []models.Organization
	if err := r.db.WithContext(ctx).
		Joins("JOIN organization_admins oa ON oa.organization_id = organizations.id").
		Where("oa.user_id = ?", userID).
		Order("organizations.name ASC").
		Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list organizations by admin: %w", mapError(err))
	}
	return orgs, nil
}
