package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"yoma-api/models"
	"yoma-api/store"
)

const opportunitySelect = "opportunities.*, organizations.name AS organization_name, organizations.status AS organization_status"

type opportunityRepository struct {
	db *gorm.DB
}

func (r *opportunityRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.Opportunity{}).
		Joins("JOIN organizations ON organizations.id = opportunities.organization_id")
}

func (r *opportunityRepository) Create(ctx context.Context, opp *models.Opportunity) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(opp).Error; err != nil {
			return err
		}
		return r.replaceAssociations(tx, opp)
	})
	if err != nil {
		return fmt.Errorf("failed to create opportunity: %w", mapError(err))
	}
	return nil
}

func (r *opportunityRepository) Update(ctx context.Context, opp *models.Opportunity) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(opp).Error; err != nil {
			return err
		}
		return r.replaceAssociations(tx, opp)
	})
	if err != nil {
		return fmt.Errorf("failed to update opportunity: %w", mapError(err))
	}
	return nil
}

func (r *opportunityRepository) replaceAssociations(tx *gorm.DB, opp *models.Opportunity) error {
	if err := tx.Model(opp).Association("Categories").Replace(opp.Categories); err != nil {
		return fmt.Errorf("replace categories: %w", err)
	}

	if err := tx.Where("opportunity_id = ?", opp.ID).Delete(&models.OpportunityVerificationType{}).Error; err != nil {
		return fmt.Errorf("delete verification types: %w", err)
	}
	if len(opp.VerificationTypes) == 0 {
		return nil
	}
	for i := range opp.VerificationTypes {
		opp.VerificationTypes[i].ID = uuid.New()
		opp.VerificationTypes[i].OpportunityID = opp.ID
	}
	if err := tx.Create(&opp.VerificationTypes).Error; err != nil {
		return fmt.Errorf("create verification types: %w", err)
	}
	return nil
}

func (r *opportunityRepository) Get(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	return r.first(r.joined(ctx), "opportunities.id = ?", id)
}

func (r *opportunityRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	return r.first(r.joined(ctx).Scopes(forUpdate("opportunities")), "opportunities.id = ?", id)
}

func (r *opportunityRepository) GetByTitle(ctx context.Context, orgID uuid.UUID, title string) (*models.Opportunity, error) {
	return r.first(r.joined(ctx), "opportunities.organization_id = ? AND LOWER(opportunities.title) = LOWER(?)", orgID, title)
}

func (r *opportunityRepository) first(q *gorm.DB, query string, args ...any) (*models.Opportunity, error) {
	var opp models.Opportunity
	if err := q.
		Select(opportunitySelect).
		Preload("Categories").
		Preload("VerificationTypes").
		Where(query, args...).
		First(&opp).Error; err != nil {
		return nil, mapError(err)
	}
	return &opp, nil
}

func (r *opportunityRepository) Search(ctx context.Context, filter store.OpportunityFilter) ([]models.Opportunity, int64, error) {
	base := func() *gorm.DB {
		q := r.joined(ctx)
		if len(filter.OrganizationIDs) > 0 {
			q = q.Where("opportunities.organization_id IN ?", filter.OrganizationIDs)
		}
		if len(filter.Types) > 0 {
			q = q.Where("opportunities.type IN ?", filter.Types)
		}
		if len(filter.CategoryIDs) > 0 {
			q = q.Where("opportunities.id IN (?)", r.db.
				Table("opportunity_categories_links").
				Select("opportunity_id").
				Where("opportunity_category_id IN ?", filter.CategoryIDs))
		}
		if len(filter.Statuses) > 0 {
			q = q.Where("opportunities.status IN ?", filter.Statuses)
		}
		if filter.ValueContains != "" {
			p := likePattern(filter.ValueContains)
			q = q.Where("(opportunities.title ILIKE ? OR opportunities.keywords ILIKE ?)", p, p)
		}
		if filter.StartDate != nil {
			q = q.Where("opportunities.date_start >= ?", *filter.StartDate)
		}
		if filter.EndDate != nil {
			q = q.Where("opportunities.date_end <= ?", *filter.EndDate)
		}
		if filter.PublishedAt != nil {
			q = q.Where("opportunities.status = ? AND organizations.status = ? AND NOT opportunities.hidden AND opportunities.date_start <= ?",
				models.OpportunityStatusActive, models.OrganizationStatusActive, *filter.PublishedAt)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count opportunities: %w", mapError(err))
	}

	var opps []models.Opportunity
	q := base().
		Select(opportunitySelect).
		Preload("Categories").
		Preload("VerificationTypes").
		Order("opportunities.created_at DESC")
	if err := paginate(q, filter.Page).Find(&opps).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search opportunities: %w", mapError(err))
	}
	return opps, total, nil
}

func (r *opportunityRepository) ListEnded(ctx context.Context, statuses []models.OpportunityStatus, now time.Time, limit int) ([]models.Opportunity, error) {
	var opps []models.Opportunity
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND date_end < ?", statuses, now).
		Order("date_end ASC").
		Limit(limit).
		Find(&opps).Error; err != nil {
		return nil, fmt.Errorf("failed to list ended opportunities: %w", mapError(err))
	}
	return opps, nil
}
