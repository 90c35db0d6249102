package services

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yoma-api/auth"
	"yoma-api/errs"
	"yoma-api/models"
	"yoma-api/store"
)

type OpportunityVerificationTypeRequest struct {
	Type        models.VerificationType `json:"type" validate:"required"`
	Description string                  `json:"description" validate:"max=255"`
}

type OpportunityRequest struct {
	Title                     string                               `json:"title" validate:"notblank,max=255"`
	Description               string                               `json:"description" validate:"notblank"`
	Type                      string                               `json:"type" validate:"notblank"`
	OrganizationID            uuid.UUID                            `json:"organization_id" validate:"required"`
	Summary                   string                               `json:"summary" validate:"max=150"`
	Instructions              string                               `json:"instructions"`
	URL                       string                               `json:"url" validate:"omitempty,url,max=2048"`
	ZltoReward                *float64                             `json:"zlto_reward" validate:"omitempty,gte=0"`
	YomaReward                *float64                             `json:"yoma_reward" validate:"omitempty,gte=0"`
	ZltoRewardPool            *float64                             `json:"zlto_reward_pool" validate:"omitempty,gte=0"`
	YomaRewardPool            *float64                             `json:"yoma_reward_pool" validate:"omitempty,gte=0"`
	VerificationEnabled       bool                                 `json:"verification_enabled"`
	VerificationMethod        *models.VerificationMethod           `json:"verification_method" validate:"omitempty,oneof=Manual Automatic"`
	Difficulty                string                               `json:"difficulty" validate:"max=50"`
	CommitmentInterval        string                               `json:"commitment_interval" validate:"max=50"`
	CommitmentIntervalCount   *int                                 `json:"commitment_interval_count" validate:"omitempty,gt=0"`
	ParticipantLimit          *int                                 `json:"participant_limit" validate:"omitempty,gt=0"`
	Keywords                  []string                             `json:"keywords" validate:"dive,notblank,max=50"`
	DateStart                 time.Time                            `json:"date_start" validate:"required"`
	DateEnd                   *time.Time                           `json:"date_end"`
	CredentialIssuanceEnabled bool                                 `json:"credential_issuance_enabled"`
	SSISchemaName             string                               `json:"ssi_schema_name" validate:"max=255"`
	Hidden                    bool                                 `json:"hidden"`
	CategoryIDs               []uuid.UUID                          `json:"categories" validate:"required,min=1"`
	VerificationTypes         []OpportunityVerificationTypeRequest `json:"verification_types" validate:"dive"`
	// PostAsActive publishes the opportunity on creation.
	PostAsActive bool `json:"post_as_active"`
}

type OpportunityStatusRequest struct {
	Status models.OpportunityStatus `json:"status" validate:"required"`
}

type OpportunitySearchFilter struct {
	OrganizationIDs []uuid.UUID                `query:"organizations"`
	Types           []string                   `query:"types"`
	CategoryIDs     []uuid.UUID                `query:"categories"`
	Statuses        []models.OpportunityStatus `query:"statuses"`
	ValueContains   string                     `query:"value_contains"`
	StartDate       *time.Time                 `query:"start_date"`
	EndDate         *time.Time                 `query:"end_date"`
	// PublishedOnly limits results to what youth can see right now.
	PublishedOnly bool `query:"-"`
	store.Page
}

// RewardAllocation is what one completion earns.
type RewardAllocation struct {
	ZltoReward *float64
	YomaReward *float64
}

// OpportunityService manages opportunities published by organisations.
type OpportunityService struct {
	clock
	store   store.Store
	orgs    *OrganizationService
	lookups *LookupService
	batch   int
}

func NewOpportunityService(st store.Store, orgs *OrganizationService, lookups *LookupService, batchSize int) *OpportunityService {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OpportunityService{store: st, orgs: orgs, lookups: lookups, batch: batchSize}
}

func (s *OpportunityService) Create(ctx context.Context, caller auth.Identity, req OpportunityRequest) (*models.Opportunity, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.orgs.Authorize(ctx, caller, req.OrganizationID); err != nil {
		return nil, err
	}

	opp := &models.Opportunity{
		ID:              uuid.New(),
		OrganizationID:  req.OrganizationID,
		Status:          models.OpportunityStatusInactive,
		CreatedByUserID: caller.UserID,
	}
	if req.PostAsActive {
		opp.Status = models.OpportunityStatusActive
	}

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		if err := s.apply(ctx, tx, opp, req, caller); err != nil {
			return err
		}
		if opp.Status == models.OpportunityStatusActive && opp.Ended(s.Now()) {
			return errs.Validation("opportunity '%s' has already ended and can not be posted as active", opp.Title)
		}
		if err := tx.Opportunities().Create(ctx, opp); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errs.Conflict("opportunity '%s' already exists", opp.Title)
			}
			return wrap(err, "failed to create opportunity")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("opportunity_id", opp.ID.String()).
		Str("organization_id", opp.OrganizationID.String()).
		Msg("opportunity created")
	return s.Get(ctx, opp.ID)
}

func (s *OpportunityService) Update(ctx context.Context, caller auth.Identity, id uuid.UUID, req OpportunityRequest) (*models.Opportunity, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.orgs.Authorize(ctx, caller, existing.OrganizationID); err != nil {
		return nil, err
	}
	if req.OrganizationID != existing.OrganizationID {
		return nil, errs.Validation("the organization of an opportunity can not be changed")
	}

	err = s.store.Transaction(ctx, func(tx store.Store) error {
		opp, err := tx.Opportunities().Get(ctx, id)
		if err != nil {
			return notFound(err, "Opportunity", id)
		}
		switch opp.Status {
		case models.OpportunityStatusDeleted, models.OpportunityStatusExpired:
			return errs.Validation("opportunity '%s' is %s and can not be updated", opp.Title, strings.ToLower(string(opp.Status)))
		}

		if err := s.apply(ctx, tx, opp, req, caller); err != nil {
			return err
		}
		if pool, cum := opp.ZltoRewardPool, deref(opp.ZltoRewardCumulative); pool != nil && *pool < cum {
			return errs.Validation("'zlto_reward_pool' can not be less than the %.2f already awarded", cum)
		}
		if pool, cum := opp.YomaRewardPool, deref(opp.YomaRewardCumulative); pool != nil && *pool < cum {
			return errs.Validation("'yoma_reward_pool' can not be less than the %.2f already awarded", cum)
		}
		if opp.ParticipantLimit != nil && *opp.ParticipantLimit < opp.ParticipantCount {
			return errs.Validation("'participant_limit' can not be less than the %d current participants", opp.ParticipantCount)
		}

		if err := tx.Opportunities().Update(ctx, opp); err != nil {
			return wrap(err, "failed to update opportunity")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// apply copies req onto opp after the cross-field and lookup checks.
func (s *OpportunityService) apply(ctx context.Context, tx store.Store, opp *models.Opportunity, req OpportunityRequest, caller auth.Identity) error {
	var problems []string

	if req.DateEnd != nil && req.DateEnd.Before(req.DateStart) {
		problems = append(problems, "'date_end' must be on or after 'date_start'")
	}
	if req.ZltoRewardPool != nil && *req.ZltoRewardPool < deref(req.ZltoReward) {
		problems = append(problems, "'zlto_reward_pool' must be greater than or equal to 'zlto_reward'")
	}
	if req.YomaRewardPool != nil && *req.YomaRewardPool < deref(req.YomaReward) {
		problems = append(problems, "'yoma_reward_pool' must be greater than or equal to 'yoma_reward'")
	}
	if req.VerificationEnabled && req.VerificationMethod == nil {
		problems = append(problems, "'verification_method' is required when verification is enabled")
	}
	manual := req.VerificationEnabled && req.VerificationMethod != nil && *req.VerificationMethod == models.VerificationMethodManual
	if manual && len(req.VerificationTypes) == 0 {
		problems = append(problems, "at least one verification type is required for manual verification")
	}
	if req.CredentialIssuanceEnabled && strings.TrimSpace(req.SSISchemaName) == "" {
		problems = append(problems, "'ssi_schema_name' is required when credential issuance is enabled")
	}

	oppType, err := s.lookups.GetOpportunityType(ctx, req.Type)
	switch {
	case errs.IsNotFound(err):
		problems = append(problems, "type '"+req.Type+"' is not supported")
	case err != nil:
		return err
	}

	var categories []models.OpportunityCategory
	for _, id := range uniq(req.CategoryIDs) {
		c, err := s.lookups.GetCategoryByID(ctx, id)
		if errs.IsNotFound(err) {
			problems = append(problems, "category '"+id.String()+"' does not exist")
			continue
		}
		if err != nil {
			return err
		}
		categories = append(categories, *c)
	}

	var verificationTypes []models.OpportunityVerificationType
	seen := map[models.VerificationType]bool{}
	for _, vt := range req.VerificationTypes {
		lookup, err := s.lookups.GetVerificationType(ctx, vt.Type)
		if errs.IsNotFound(err) {
			problems = append(problems, "verification type '"+string(vt.Type)+"' is not supported")
			continue
		}
		if err != nil {
			return err
		}
		if seen[lookup.Type] {
			problems = append(problems, "verification type '"+string(lookup.Type)+"' is specified more than once")
			continue
		}
		seen[lookup.Type] = true
		description := strings.TrimSpace(vt.Description)
		if description == "" {
			description = lookup.Description
		}
		verificationTypes = append(verificationTypes, models.OpportunityVerificationType{
			VerificationType: lookup.Type,
			Description:      description,
		})
	}

	if err := errs.Validations(problems); err != nil {
		return err
	}

	org, err := tx.Organizations().Get(ctx, req.OrganizationID)
	if err != nil {
		return notFound(err, "Organization", req.OrganizationID)
	}
	if org.Status == models.OrganizationStatusDeleted {
		return errs.Validation("organization '%s' has been deleted", org.Name)
	}

	title := strings.TrimSpace(req.Title)
	existing, err := tx.Opportunities().GetByTitle(ctx, org.ID, title)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return err
	case existing.ID != opp.ID:
		return errs.Conflict("opportunity '%s' already exists for organization '%s'", title, org.Name)
	}

	opp.Title = title
	opp.Description = strings.TrimSpace(req.Description)
	opp.Type = oppType.Name
	opp.Summary = strings.TrimSpace(req.Summary)
	opp.Instructions = strings.TrimSpace(req.Instructions)
	opp.URL = strings.TrimSpace(req.URL)
	opp.ZltoReward = copyPtr(req.ZltoReward)
	opp.YomaReward = copyPtr(req.YomaReward)
	opp.ZltoRewardPool = copyPtr(req.ZltoRewardPool)
	opp.YomaRewardPool = copyPtr(req.YomaRewardPool)
	opp.VerificationEnabled = req.VerificationEnabled
	opp.VerificationMethod = copyPtr(req.VerificationMethod)
	opp.Difficulty = strings.TrimSpace(req.Difficulty)
	opp.CommitmentInterval = strings.TrimSpace(req.CommitmentInterval)
	opp.CommitmentIntervalCount = copyPtr(req.CommitmentIntervalCount)
	opp.ParticipantLimit = copyPtr(req.ParticipantLimit)
	opp.Keywords = joinKeywords(req.Keywords)
	opp.DateStart = req.DateStart.UTC()
	opp.DateEnd = nil
	if req.DateEnd != nil {
		opp.DateEnd = ptr(req.DateEnd.UTC())
	}
	opp.CredentialIssuanceEnabled = req.CredentialIssuanceEnabled
	opp.SSISchemaName = strings.TrimSpace(req.SSISchemaName)
	if !opp.CredentialIssuanceEnabled {
		opp.SSISchemaName = ""
	}
	opp.Hidden = req.Hidden
	opp.Categories = categories
	opp.VerificationTypes = verificationTypes
	opp.ModifiedByUserID = caller.UserID
	return nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	return ptr(*p)
}

func uniq[T comparable](items []T) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if !slices.Contains(out, item) {
			out = append(out, item)
		}
	}
	return out
}

func joinKeywords(keywords []string) string {
	var out []string
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k != "" && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return strings.Join(out, ",")
}

func (s *OpportunityService) Get(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	opp, err := s.store.Opportunities().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Opportunity", id)
	}
	return opp, nil
}

// GetPublished returns the opportunity only when youth can currently see it.
func (s *OpportunityService) GetPublished(ctx context.Context, id uuid.UUID) (*models.Opportunity, error) {
	opp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !opp.Published(s.Now()) {
		return nil, errs.NotFound("Opportunity", id)
	}
	return opp, nil
}

func (s *OpportunityService) Search(ctx context.Context, filter OpportunitySearchFilter) (*PagedResult[models.Opportunity], error) {
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, errs.Validation("'end_date' must be on or after 'start_date'")
	}
	f := store.OpportunityFilter{
		OrganizationIDs: filter.OrganizationIDs,
		Types:           filter.Types,
		CategoryIDs:     filter.CategoryIDs,
		Statuses:        filter.Statuses,
		ValueContains:   strings.TrimSpace(filter.ValueContains),
		StartDate:       filter.StartDate,
		EndDate:         filter.EndDate,
		Page:            filter.Page,
	}
	if filter.PublishedOnly {
		f.PublishedAt = ptr(s.Now())
	}
	items, total, err := s.store.Opportunities().Search(ctx, f)
	if err != nil {
		return nil, err
	}
	return paged(items, total), nil
}

// UpdateStatus applies an admin status change. Expired is reserved for the
// expiry job.
func (s *OpportunityService) UpdateStatus(ctx context.Context, caller auth.Identity, id uuid.UUID, req OpportunityStatusRequest) (*models.Opportunity, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		opp, err := tx.Opportunities().Get(ctx, id)
		if err != nil {
			return notFound(err, "Opportunity", id)
		}
		if err := s.orgs.Authorize(ctx, caller, opp.OrganizationID); err != nil {
			return err
		}
		if opp.Status == req.Status {
			return nil
		}

		switch req.Status {
		case models.OpportunityStatusActive:
			if opp.Status != models.OpportunityStatusInactive {
				return s.invalidTransition(opp, req.Status)
			}
			if opp.Ended(s.Now()) {
				return errs.Validation("opportunity '%s' has already ended and can not be activated", opp.Title)
			}
		case models.OpportunityStatusInactive:
			if opp.Status != models.OpportunityStatusActive {
				return s.invalidTransition(opp, req.Status)
			}
		case models.OpportunityStatusDeleted:
			if opp.Status == models.OpportunityStatusDeleted {
				return s.invalidTransition(opp, req.Status)
			}
		default:
			return s.invalidTransition(opp, req.Status)
		}

		opp.Status = req.Status
		opp.ModifiedByUserID = caller.UserID
		return wrap(tx.Opportunities().Update(ctx, opp), "failed to update opportunity status")
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *OpportunityService) invalidTransition(opp *models.Opportunity, next models.OpportunityStatus) error {
	return errs.Validation("status of opportunity '%s' can not be changed from '%s' to '%s'", opp.Title, opp.Status, next)
}

// ExpireOpportunities marks active and inactive opportunities whose end date
// has passed as expired, one batch per transaction.
func (s *OpportunityService) ExpireOpportunities(ctx context.Context) (ProcessResult, error) {
	var result ProcessResult
	statuses := []models.OpportunityStatus{models.OpportunityStatusActive, models.OpportunityStatusInactive}

	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var n int
		err := s.store.Transaction(ctx, func(tx store.Store) error {
			items, err := tx.Opportunities().ListEnded(ctx, statuses, s.Now(), s.batch)
			if err != nil {
				return err
			}
			n = len(items)
			for i := range items {
				items[i].Status = models.OpportunityStatusExpired
				if err := tx.Opportunities().Update(ctx, &items[i]); err != nil {
					return wrap(err, "failed to expire opportunity %s", items[i].ID)
				}
			}
			return nil
		})
		if err != nil {
			result.Failed += n
			return result, err
		}

		result.Processed += n
		result.Succeeded += n
		if n < s.batch {
			break
		}
	}

	if result.Processed > 0 {
		zerolog.Ctx(ctx).Info().Int("count", result.Processed).Msg("opportunities expired")
	}
	return result, nil
}

// AllocateRewards reserves the rewards of one completion against the
// opportunity's pools and counts the participant. The reward is capped by
// what remains in a pool; an exhausted pool yields no reward. The
// opportunity row stays locked until tx ends.
func (s *OpportunityService) AllocateRewards(ctx context.Context, tx store.Store, id uuid.UUID) (*RewardAllocation, error) {
	opp, err := tx.Opportunities().GetForUpdate(ctx, id)
	if err != nil {
		return nil, notFound(err, "Opportunity", id)
	}
	if opp.ParticipantLimit != nil && opp.ParticipantCount >= *opp.ParticipantLimit {
		return nil, errs.Validation("opportunity '%s' has reached its participant limit", opp.Title)
	}

	alloc := &RewardAllocation{}
	alloc.ZltoReward, opp.ZltoRewardCumulative = allocate(opp.ZltoReward, opp.ZltoRewardPool, opp.ZltoRewardCumulative)
	alloc.YomaReward, opp.YomaRewardCumulative = allocate(opp.YomaReward, opp.YomaRewardPool, opp.YomaRewardCumulative)
	opp.ParticipantCount++

	if err := tx.Opportunities().Update(ctx, opp); err != nil {
		return nil, wrap(err, "failed to allocate rewards")
	}
	return alloc, nil
}

// allocate returns the amount awarded and the new cumulative total.
func allocate(reward, pool, cumulative *float64) (*float64, *float64) {
	amount := deref(reward)
	if amount <= 0 {
		return nil, cumulative
	}
	total := deref(cumulative)
	if pool != nil {
		amount = math.Min(amount, *pool-total)
	}
	amount = round2(amount)
	if amount <= 0 {
		return nil, cumulative
	}
	return ptr(amount), ptr(round2(total + amount))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
