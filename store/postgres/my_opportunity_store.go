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

const myOpportunitySelect = "my_opportunities.*, opportunities.title AS opportunity_title, " +
	"opportunities.organization_id AS organization_id, users.email AS user_email"

type myOpportunityRepository struct {
	db *gorm.DB
}

func (r *myOpportunityRepository) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.MyOpportunity{}).
		Joins("JOIN opportunities ON opportunities.id = my_opportunities.opportunity_id").
		Joins("JOIN users ON users.id = my_opportunities.user_id")
}

func (r *myOpportunityRepository) Create(ctx context.Context, item *models.MyOpportunity) error {
	for i := range item.Verifications {
		if item.Verifications[i].ID == uuid.Nil {
			item.Verifications[i].ID = uuid.New()
		}
	}
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("failed to create my opportunity: %w", mapError(err))
	}
	return nil
}

func (r *myOpportunityRepository) Update(ctx context.Context, item *models.MyOpportunity) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(item).Error; err != nil {
			return err
		}
		if err := tx.Where("my_opportunity_id = ?", item.ID).Delete(&models.MyOpportunityVerification{}).Error; err != nil {
			return err
		}
		if len(item.Verifications) == 0 {
			return nil
		}
		for i := range item.Verifications {
			item.Verifications[i].ID = uuid.New()
			item.Verifications[i].MyOpportunityID = item.ID
		}
		return tx.Create(&item.Verifications).Error
	})
	if err != nil {
		return fmt.Errorf("failed to update my opportunity: %w", mapError(err))
	}
	return nil
}

func (r *myOpportunityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("my_opportunity_id = ?", id).Delete(&models.MyOpportunityVerification{}).Error; err != nil {
			return fmt.Errorf("failed to delete my opportunity verifications: %w", mapError(err))
		}
		res := tx.Delete(&models.MyOpportunity{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete my opportunity: %w", mapError(res.Error))
		}
		if res.RowsAffected == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

const myOpportunityKey = "my_opportunities.user_id = ? AND my_opportunities.opportunity_id = ? AND my_opportunities.action = ?"

func (r *myOpportunityRepository) Get(ctx context.Context, id uuid.UUID) (*models.MyOpportunity, error) {
	return r.first(r.joined(ctx), "my_opportunities.id = ?", id)
}

func (r *myOpportunityRepository) Find(ctx context.Context, userID, opportunityID uuid.UUID, action models.Action) (*models.MyOpportunity, error) {
	return r.first(r.joined(ctx), myOpportunityKey, userID, opportunityID, action)
}

func (r *myOpportunityRepository) FindForUpdate(ctx context.Context, userID, opportunityID uuid.UUID, action models.Action) (*models.MyOpportunity, error) {
	return r.first(r.joined(ctx).Scopes(forUpdate("my_opportunities")), myOpportunityKey, userID, opportunityID, action)
}

func (r *myOpportunityRepository) first(q *gorm.DB, query string, args ...any) (*models.MyOpportunity, error) {
	var item models.MyOpportunity
	if err := q.
		Select(myOpportunitySelect).
		Preload("Verifications").
		Where(query, args...).
		First(&item).Error; err != nil {
		return nil, mapError(err)
	}
	return &item, nil
}

func (r *myOpportunityRepository) Search(ctx context.Context, filter store.MyOpportunityFilter) ([]models.MyOpportunity, int64, error) {
	base := func() *gorm.DB {
		q := r.joined(ctx)
		if filter.UserID != nil {
			q = q.Where("my_opportunities.user_id = ?", *filter.UserID)
		}
		if filter.OpportunityID != nil {
			q = q.Where("my_opportunities.opportunity_id = ?", *filter.OpportunityID)
		}
		if filter.OrganizationID != nil {
			q = q.Where("opportunities.organization_id = ?", *filter.OrganizationID)
		}
		if filter.Action != nil {
			q = q.Where("my_opportunities.action = ?", *filter.Action)
		}
		if len(filter.VerificationStatuses) > 0 {
			q = q.Where("my_opportunities.verification_status IN ?", filter.VerificationStatuses)
		}
		return q
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count my opportunities: %w", mapError(err))
	}

	var items []models.MyOpportunity
	q := base().
		Select(myOpportunitySelect).
		Preload("Verifications").
		Order("my_opportunities.updated_at DESC")
	if err := paginate(q, filter.Page).Find(&items).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to search my opportunities: %w", mapError(err))
	}
	return items, total, nil
}

func (r *myOpportunityRepository) Engagement(ctx context.Context, filter store.EngagementFilter) ([]store.EngagementRow, error) {
	q := r.db.WithContext(ctx).
		Table("my_opportunities mo").
		Select("mo.id AS my_opportunity_id, mo.opportunity_id, o.title AS opportunity_title, " +
			"mo.action, mo.verification_status, mo.zlto_reward, mo.created_at AS date_created, mo.date_completed").
		Joins("JOIN opportunities o ON o.id = mo.opportunity_id")

	if filter.OrganizationID != nil {
		q = q.Where("o.organization_id = ?", *filter.OrganizationID)
	}
	if filter.UserID != nil {
		q = q.Where("mo.user_id = ?", *filter.UserID)
	}
	if len(filter.OpportunityIDs) > 0 {
		q = q.Where("mo.opportunity_id IN ?", filter.OpportunityIDs)
	}
	if len(filter.CategoryIDs) > 0 {
		q = q.Where("o.id IN (?)", r.db.
			Table("opportunity_categories_links").
			Select("opportunity_id").
			Where("opportunity_category_id IN ?", filter.CategoryIDs))
	}
	// updated_at moves with every transition, so it bounds both the created
	// and the completed dates from below. Exact ranges are applied by the caller.
	if filter.StartDate != nil {
		q = q.Where("mo.updated_at >= ?", *filter.StartDate)
	}

	var rows []store.EngagementRow
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load engagement: %w", mapError(err))
	}
	return rows, nil
}
