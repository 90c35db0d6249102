package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"yoma-api/cache"
	"yoma-api/errs"
	"yoma-api/models"
	"yoma-api/store"
)

const (
	keyCategories        = "categories"
	keyOpportunityTypes  = "opportunity_types"
	keyVerificationTypes = "verification_types"
	keySchemaEntities    = "ssi_schema_entities"
)

// LookupService serves reference data from an expiring cache.
type LookupService struct {
	store store.Store
	cache *cache.Cache[any]
}

func NewLookupService(st store.Store, size int, ttl time.Duration) *LookupService {
	return &LookupService{store: st, cache: cache.New[any](size, ttl)}
}

func cached[T any](ctx context.Context, s *LookupService, key string, load func(context.Context) ([]T, error)) ([]T, error) {
	v, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		return nil, err
	}
	items := v.([]T)
	out := make([]T, len(items))
	copy(out, items)
	return out, nil
}

// Invalidate drops every cached lookup.
func (s *LookupService) Invalidate() { s.cache.Purge() }

func (s *LookupService) ListCategories(ctx context.Context) ([]models.OpportunityCategory, error) {
	return cached(ctx, s, keyCategories, s.store.Lookups().Categories)
}

func (s *LookupService) GetCategoryByID(ctx context.Context, id uuid.UUID) (*models.OpportunityCategory, error) {
	items, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range items {
		if c.ID == id {
			return &c, nil
		}
	}
	return nil, errs.NotFound("Opportunity category", id)
}

func (s *LookupService) GetCategoryByName(ctx context.Context, name string) (*models.OpportunityCategory, error) {
	items, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range items {
		if strings.EqualFold(c.Name, strings.TrimSpace(name)) {
			return &c, nil
		}
	}
	return nil, errs.NotFound("Opportunity category", name)
}

func (s *LookupService) ListOpportunityTypes(ctx context.Context) ([]models.OpportunityType, error) {
	return cached(ctx, s, keyOpportunityTypes, s.store.Lookups().OpportunityTypes)
}

func (s *LookupService) GetOpportunityType(ctx context.Context, name string) (*models.OpportunityType, error) {
	items, err := s.ListOpportunityTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range items {
		if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
			return &t, nil
		}
	}
	return nil, errs.NotFound("Opportunity type", name)
}

func (s *LookupService) ListVerificationTypes(ctx context.Context) ([]models.VerificationTypeLookup, error) {
	return cached(ctx, s, keyVerificationTypes, s.store.Lookups().VerificationTypes)
}

func (s *LookupService) GetVerificationType(ctx context.Context, t models.VerificationType) (*models.VerificationTypeLookup, error) {
	items, err := s.ListVerificationTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range items {
		if strings.EqualFold(string(v.Type), string(t)) {
			return &v, nil
		}
	}
	return nil, errs.NotFound("Verification type", t)
}

func (s *LookupService) GetVerificationTypeByID(ctx context.Context, id uuid.UUID) (*models.VerificationTypeLookup, error) {
	items, err := s.ListVerificationTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range items {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, errs.NotFound("Verification type", id)
}

func (s *LookupService) ListSchemaEntities(ctx context.Context) ([]models.SSISchemaEntity, error) {
	return cached(ctx, s, keySchemaEntities, s.store.Lookups().SchemaEntities)
}

func (s *LookupService) OrganizationStatuses() []models.OrganizationStatus {
	return append([]models.OrganizationStatus(nil), models.OrganizationStatuses...)
}

func (s *LookupService) OpportunityStatuses() []models.OpportunityStatus {
	return append([]models.OpportunityStatus(nil), models.OpportunityStatuses...)
}

func (s *LookupService) VerificationStatuses() []models.VerificationStatus {
	return append([]models.VerificationStatus(nil), models.VerificationStatuses...)
}
