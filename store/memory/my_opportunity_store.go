package memory

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"yoma-api/models"
	"yoma-api/store"
)

type myOpportunityRepository struct {
	s *state
}

// view clones the record and fills the read-only joined fields. Callers hold the lock.
func (r *myOpportunityRepository) view(m models.MyOpportunity) models.MyOpportunity {
	m.Verifications = slices.Clone(m.Verifications)
	if o, ok := r.s.d.opportunities[m.OpportunityID]; ok {
		m.OpportunityTitle = o.Title
		m.OrganizationID = o.OrganizationID
	}
	if u, ok := r.s.d.users[m.UserID]; ok {
		m.UserEmail = u.Email
	}
	return m
}

func (r *myOpportunityRepository) prepare(item *models.MyOpportunity) {
	for i := range item.Verifications {
		if item.Verifications[i].ID == uuid.Nil {
			item.Verifications[i].ID = uuid.New()
		}
		item.Verifications[i].MyOpportunityID = item.ID
	}
}

func (r *myOpportunityRepository) Create(ctx context.Context, item *models.MyOpportunity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if _, ok := r.s.d.users[item.UserID]; !ok {
		return store.ErrNotFound
	}
	if _, ok := r.s.d.opportunities[item.OpportunityID]; !ok {
		return store.ErrNotFound
	}
	for _, existing := range r.s.d.myOpportunities {
		if existing.ID == item.ID || (existing.UserID == item.UserID &&
			existing.OpportunityID == item.OpportunityID && existing.Action == item.Action) {
			return store.ErrDuplicate
		}
	}

	r.prepare(item)
	touch(&item.CreatedAt, &item.UpdatedAt)
	stored := *item
	stored.Verifications = slices.Clone(item.Verifications)
	r.s.d.myOpportunities[item.ID] = stored
	return nil
}

func (r *myOpportunityRepository) Update(ctx context.Context, item *models.MyOpportunity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.d.myOpportunities[item.ID]; !exists {
		return store.ErrNotFound
	}

	r.prepare(item)
	touch(nil, &item.UpdatedAt)
	stored := *item
	stored.Verifications = slices.Clone(item.Verifications)
	r.s.d.myOpportunities[item.ID] = stored
	return nil
}

func (r *myOpportunityRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.d.myOpportunities[id]; !exists {
		return store.ErrNotFound
	}
	delete(r.s.d.myOpportunities, id)
	return nil
}

func (r *myOpportunityRepository) Get(ctx context.Context, id uuid.UUID) (*models.MyOpportunity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	item, exists := r.s.d.myOpportunities[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := r.view(item)
	return &out, nil
}

func (r *myOpportunityRepository) Find(ctx context.Context, userID, opportunityID uuid.UUID, action models.Action) (*models.MyOpportunity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, item := range r.s.d.myOpportunities {
		if item.UserID == userID && item.OpportunityID == opportunityID && item.Action == action {
			out := r.view(item)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *myOpportunityRepository) FindForUpdate(ctx context.Context, userID, opportunityID uuid.UUID, action models.Action) (*models.MyOpportunity, error) {
	return r.Find(ctx, userID, opportunityID, action)
}

func (r *myOpportunityRepository) Search(ctx context.Context, filter store.MyOpportunityFilter) ([]models.MyOpportunity, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.MyOpportunity
	for _, stored := range r.s.d.myOpportunities {
		m := r.view(stored)
		if filter.UserID != nil && m.UserID != *filter.UserID {
			continue
		}
		if filter.OpportunityID != nil && m.OpportunityID != *filter.OpportunityID {
			continue
		}
		if filter.OrganizationID != nil && m.OrganizationID != *filter.OrganizationID {
			continue
		}
		if filter.Action != nil && m.Action != *filter.Action {
			continue
		}
		if len(filter.VerificationStatuses) > 0 &&
			(m.VerificationStatus == nil || !contains(filter.VerificationStatuses, *m.VerificationStatus)) {
			continue
		}
		result = append(result, m)
	}
	sortBy(result, func(a, b models.MyOpportunity) bool { return a.UpdatedAt.After(b.UpdatedAt) })

	return page(result, filter.Page), int64(len(result)), nil
}

func (r *myOpportunityRepository) Engagement(ctx context.Context, filter store.EngagementFilter) ([]store.EngagementRow, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var rows []store.EngagementRow
	for _, m := range r.s.d.myOpportunities {
		o, ok := r.s.d.opportunities[m.OpportunityID]
		if !ok {
			continue
		}
		if filter.OrganizationID != nil && o.OrganizationID != *filter.OrganizationID {
			continue
		}
		if filter.UserID != nil && m.UserID != *filter.UserID {
			continue
		}
		if len(filter.OpportunityIDs) > 0 && !contains(filter.OpportunityIDs, m.OpportunityID) {
			continue
		}
		if len(filter.CategoryIDs) > 0 && !hasCategory(o, filter.CategoryIDs) {
			continue
		}
		if filter.StartDate != nil && m.UpdatedAt.Before(*filter.StartDate) {
			continue
		}
		rows = append(rows, store.EngagementRow{
			MyOpportunityID:    m.ID,
			OpportunityID:      m.OpportunityID,
			OpportunityTitle:   o.Title,
			Action:             m.Action,
			VerificationStatus: m.VerificationStatus,
			ZltoReward:         m.ZltoReward,
			DateCreated:        m.CreatedAt,
			DateCompleted:      m.DateCompleted,
		})
	}
	return rows, nil
}
