package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"yoma-api/models"
	"yoma-api/store"
)

type opportunityRepository struct {
	s *state
}

func cloneOpportunity(o models.Opportunity) models.Opportunity {
	o.Categories = slices.Clone(o.Categories)
	o.VerificationTypes = slices.Clone(o.VerificationTypes)
	return o
}

// withOrganization fills the read-only organisation fields. Callers hold the lock.
func (r *opportunityRepository) withOrganization(o models.Opportunity) models.Opportunity {
	o = cloneOpportunity(o)
	if org, ok := r.s.d.organizations[o.OrganizationID]; ok {
		o.OrganizationName = org.Name
		o.OrganizationStatus = org.Status
	}
	return o
}

func (r *opportunityRepository) prepare(opp *models.Opportunity) {
	for i := range opp.VerificationTypes {
		opp.VerificationTypes[i].ID = uuid.New()
		opp.VerificationTypes[i].OpportunityID = opp.ID
	}
}

func (r *opportunityRepository) Create(ctx context.Context, opp *models.Opportunity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if opp.ID == uuid.Nil {
		opp.ID = uuid.New()
	}
	if _, exists := r.s.d.opportunities[opp.ID]; exists {
		return store.ErrDuplicate
	}
	if _, ok := r.s.d.organizations[opp.OrganizationID]; !ok {
		return store.ErrNotFound
	}

	r.prepare(opp)
	touch(&opp.CreatedAt, &opp.UpdatedAt)
	r.s.d.opportunities[opp.ID] = cloneOpportunity(*opp)
	return nil
}

func (r *opportunityRepository) Update(ctx context.Context, opp *models.Opportunity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.d.opportunities[opp.ID]; !exists {
		return store.ErrNotFound
	}

	r.prepare(opp)
	touch(nil, &opp.UpdatedAt)
	r.s.d.opportunities[opp.ID] = cloneOpportunity(*opp)
	return nil
}

func (r *opportunityRepository) Get(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	opp, exists := r.s.d.opportunities[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	out := r.withOrganization(opp)
	return &out, nil
}

// GetForUpdate is Get. Transactions on the memory store are serialised, so
// there is nothing to lock.
func (r *opportunityRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	return r.Get(ctx, id)
}

func (r *opportunityRepository) GetByTitle(ctx context.Context, orgID uuid.UUID, title string) (*models.Opportunity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, opp := range r.s.d.opportunities {
		if opp.OrganizationID == orgID && strings.EqualFold(opp.Title, title) {
			out := r.withOrganization(opp)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func hasCategory(o models.Opportunity, ids []uuid.UUID) bool {
	for _, c := range o.Categories {
		if contains(ids, c.ID) {
			return true
		}
	}
	return false
}

func (r *opportunityRepository) Search(ctx context.Context, filter store.OpportunityFilter) ([]models.Opportunity, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.Opportunity
	for _, stored := range r.s.d.opportunities {
		o := r.withOrganization(stored)
		if len(filter.OrganizationIDs) > 0 && !contains(filter.OrganizationIDs, o.OrganizationID) {
			continue
		}
		if len(filter.Types) > 0 && !contains(filter.Types, o.Type) {
			continue
		}
		if len(filter.CategoryIDs) > 0 && !hasCategory(o, filter.CategoryIDs) {
			continue
		}
		if len(filter.Statuses) > 0 && !contains(filter.Statuses, o.Status) {
			continue
		}
		if filter.ValueContains != "" && !containsFold(o.Title, filter.ValueContains) && !containsFold(o.Keywords, filter.ValueContains) {
			continue
		}
		if filter.StartDate != nil && o.DateStart.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && (o.DateEnd == nil || o.DateEnd.After(*filter.EndDate)) {
			continue
		}
		if filter.PublishedAt != nil && !o.Published(*filter.PublishedAt) {
			continue
		}
		result = append(result, o)
	}
	sortBy(result, func(a, b models.Opportunity) bool { return a.CreatedAt.After(b.CreatedAt) })

	return page(result, filter.Page), int64(len(result)), nil
}

func (r *opportunityRepository) ListEnded(ctx context.Context, statuses []models.OpportunityStatus, now time.Time, limit int) ([]models.Opportunity, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.Opportunity
	for _, o := range r.s.d.opportunities {
		if contains(statuses, o.Status) && o.DateEnd != nil && o.DateEnd.Before(now) {
			result = append(result, cloneOpportunity(o))
		}
	}
	sortBy(result, func(a, b models.Opportunity) bool { return a.DateEnd.Before(*b.DateEnd) })

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
