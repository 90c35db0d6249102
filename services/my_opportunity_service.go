package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yoma-api/auth"
	"yoma-api/errs"
	"yoma-api/models"
	"yoma-api/store"
	"yoma-api/utils"
)

// Geometry is a GeoJSON point: coordinates hold [longitude, latitude] with an
// optional altitude.
type Geometry struct {
	Type        string      `json:"type" validate:"eq=Point"`
	Coordinates [][]float64 `json:"coordinates" validate:"required,min=1,dive,min=2,max=3"`
}

type VerificationItemRequest struct {
	Type     models.VerificationType `json:"type" validate:"required"`
	Geometry *Geometry               `json:"geometry"`
	File     *utils.File             `json:"-"`
}

type VerificationRequest struct {
	DateStart *time.Time                `json:"date_start"`
	DateEnd   *time.Time                `json:"date_end"`
	Items     []VerificationItemRequest `json:"items" validate:"dive"`
}

type VerificationStatusRequest struct {
	UserID        uuid.UUID                 `json:"user_id" validate:"required"`
	OpportunityID uuid.UUID                 `json:"opportunity_id" validate:"required"`
	Status        models.VerificationStatus `json:"status" validate:"required,oneof=Completed Rejected"`
	Comment       string                    `json:"comment" validate:"max=500"`
}

type VerificationStatusBulkRequest struct {
	Items []VerificationStatusRequest `json:"items" validate:"required,min=1,dive"`
}

type MyOpportunitySearchFilter struct {
	UserID               *uuid.UUID                  `query:"user_id"`
	OpportunityID        *uuid.UUID                  `query:"opportunity_id"`
	OrganizationID       *uuid.UUID                  `query:"organization_id"`
	Action               *models.Action              `query:"action"`
	VerificationStatuses []models.VerificationStatus `query:"verification_statuses"`
	store.Page
}

// VerificationState is a user's verification progress on one opportunity.
// Status is "None" when nothing was submitted.
type VerificationState struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

const verificationStatusNone = "None"

// MyOpportunityService records what users do with opportunities and runs
// the verification workflow.
type MyOpportunityService struct {
	clock
	store         store.Store
	blobs         *BlobService
	orgs          *OrganizationService
	opportunities *OpportunityService
	rewards       *RewardService
	ssi           *SSIService
}

func NewMyOpportunityService(
	st store.Store,
	blobs *BlobService,
	orgs *OrganizationService,
	opportunities *OpportunityService,
	rewards *RewardService,
	ssi *SSIService,
) *MyOpportunityService {
	return &MyOpportunityService{
		store:         st,
		blobs:         blobs,
		orgs:          orgs,
		opportunities: opportunities,
		rewards:       rewards,
		ssi:           ssi,
	}
}

// SetClock replaces the time source of the service and the opportunity
// service it allocates rewards through.
func (s *MyOpportunityService) SetClock(now func() time.Time) {
	s.clock.SetClock(now)
	s.opportunities.SetClock(now)
}

func (s *MyOpportunityService) published(ctx context.Context, tx store.Store, userID, oppID uuid.UUID) (*models.Opportunity, error) {
	if _, err := tx.Users().Get(ctx, userID); err != nil {
		return nil, notFound(err, "User", userID)
	}
	opp, err := tx.Opportunities().Get(ctx, oppID)
	if err != nil {
		return nil, notFound(err, "Opportunity", oppID)
	}
	if !opp.Published(s.Now()) {
		return nil, errs.Validation("opportunity '%s' has not been published", opp.Title)
	}
	return opp, nil
}

// retryOnDuplicate runs fn in a transaction and runs it once more when a
// concurrent request inserted the same row first.
func (s *MyOpportunityService) retryOnDuplicate(ctx context.Context, fn func(tx store.Store) error) error {
	err := s.store.Transaction(ctx, fn)
	if errors.Is(err, store.ErrDuplicate) {
		err = s.store.Transaction(ctx, fn)
	}
	return err
}

// PerformActionViewed records that the user viewed the opportunity. A repeat
// view refreshes the existing record.
func (s *MyOpportunityService) PerformActionViewed(ctx context.Context, userID, oppID uuid.UUID) error {
	return s.retryOnDuplicate(ctx, func(tx store.Store) error {
		if _, err := s.published(ctx, tx, userID, oppID); err != nil {
			return err
		}
		item, err := tx.MyOpportunities().Find(ctx, userID, oppID, models.ActionViewed)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return wrap(tx.MyOpportunities().Create(ctx, &models.MyOpportunity{
				ID:            uuid.New(),
				UserID:        userID,
				OpportunityID: oppID,
				Action:        models.ActionViewed,
			}), "failed to record view")
		case err != nil:
			return err
		}
		return wrap(tx.MyOpportunities().Update(ctx, item), "failed to record view")
	})
}

func (s *MyOpportunityService) PerformActionSaved(ctx context.Context, userID, oppID uuid.UUID) error {
	return s.retryOnDuplicate(ctx, func(tx store.Store) error {
		if _, err := s.published(ctx, tx, userID, oppID); err != nil {
			return err
		}
		_, err := tx.MyOpportunities().Find(ctx, userID, oppID, models.ActionSaved)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return wrap(tx.MyOpportunities().Create(ctx, &models.MyOpportunity{
			ID:            uuid.New(),
			UserID:        userID,
			OpportunityID: oppID,
			Action:        models.ActionSaved,
		}), "failed to save opportunity")
	})
}

// PerformActionSavedRemove removes a saved opportunity. Removing one that
// was never saved does nothing.
func (s *MyOpportunityService) PerformActionSavedRemove(ctx context.Context, userID, oppID uuid.UUID) error {
	return s.store.Transaction(ctx, func(tx store.Store) error {
		item, err := tx.MyOpportunities().Find(ctx, userID, oppID, models.ActionSaved)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return tx.MyOpportunities().Delete(ctx, item.ID)
	})
}

// PerformActionSendForVerification submits the user's completion claim with
// its evidence. A rejected claim may be submitted again.
func (s *MyOpportunityService) PerformActionSendForVerification(ctx context.Context, userID, oppID uuid.UUID, req VerificationRequest) (*models.MyOpportunity, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	var item *models.MyOpportunity
	err := s.blobs.Transaction(ctx, func(tx store.Store, up *Uploader) error {
		opp, err := s.published(ctx, tx, userID, oppID)
		if err != nil {
			return err
		}
		if !opp.ManualVerification() {
			return errs.Validation("opportunity '%s' does not support manual verification", opp.Title)
		}
		if opp.ParticipantLimit != nil && opp.ParticipantCount >= *opp.ParticipantLimit {
			return errs.Validation("opportunity '%s' has reached its participant limit", opp.Title)
		}
		if err := s.checkDates(opp, req); err != nil {
			return err
		}
		items, err := checkItems(opp, req.Items)
		if err != nil {
			return err
		}

		existing, err := tx.MyOpportunities().Find(ctx, userID, oppID, models.ActionVerification)
		var oldFiles []uuid.UUID
		switch {
		case errors.Is(err, store.ErrNotFound):
			item = &models.MyOpportunity{
				ID:            uuid.New(),
				UserID:        userID,
				OpportunityID: oppID,
				Action:        models.ActionVerification,
			}
		case err != nil:
			return err
		default:
			switch deref(existing.VerificationStatus) {
			case models.VerificationStatusPending:
				return errs.Conflict("verification of opportunity '%s' is already pending", opp.Title)
			case models.VerificationStatusCompleted:
				return errs.Conflict("verification of opportunity '%s' has already been completed", opp.Title)
			}
			item = existing
			oldFiles = existing.FileIDs()
		}

		verifications := make([]models.MyOpportunityVerification, 0, len(items))
		for _, in := range items {
			v := models.MyOpportunityVerification{VerificationType: in.Type}
			if fileType, ok := in.Type.FileType(); ok {
				obj, err := up.Upload(ctx, fileType, *in.File)
				if err != nil {
					return err
				}
				v.FileID = &obj.ID
			}
			if in.Type == models.VerificationTypeLocation {
				raw, err := json.Marshal(in.Geometry)
				if err != nil {
					return wrap(err, "failed to encode location")
				}
				v.GeometryJSON = string(raw)
			}
			verifications = append(verifications, v)
		}

		item.VerificationStatus = ptr(models.VerificationStatusPending)
		item.CommentVerification = ""
		item.DateStart = req.DateStart
		item.DateEnd = req.DateEnd
		item.DateCompleted = nil
		item.ZltoReward = nil
		item.YomaReward = nil
		item.Verifications = verifications

		if existing == nil {
			err = tx.MyOpportunities().Create(ctx, item)
		} else {
			err = tx.MyOpportunities().Update(ctx, item)
		}
		if err != nil {
			return wrap(err, "failed to send opportunity for verification")
		}

		for _, id := range oldFiles {
			if err := up.Remove(ctx, id); err != nil && !errs.IsNotFound(err) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("user_id", userID.String()).
		Str("opportunity_id", oppID.String()).
		Msg("opportunity sent for verification")
	return s.Get(ctx, item.ID)
}

func (s *MyOpportunityService) checkDates(opp *models.Opportunity, req VerificationRequest) error {
	var problems []string
	now := s.Now()
	if req.DateStart != nil && req.DateStart.Before(truncateDay(opp.DateStart)) {
		problems = append(problems, "'date_start' can not be before the start of the opportunity")
	}
	if req.DateEnd != nil {
		if req.DateStart != nil && req.DateEnd.Before(*req.DateStart) {
			problems = append(problems, "'date_end' must be on or after 'date_start'")
		}
		if opp.DateEnd != nil && truncateDay(*req.DateEnd).After(*opp.DateEnd) {
			problems = append(problems, "'date_end' can not be after the end of the opportunity")
		}
		if req.DateEnd.After(now) {
			problems = append(problems, "'date_end' can not be in the future")
		}
	}
	return errs.Validations(problems)
}

func truncateDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// checkItems matches the submitted evidence against the verification types
// configured on the opportunity.
func checkItems(opp *models.Opportunity, items []VerificationItemRequest) ([]VerificationItemRequest, error) {
	var problems []string
	byType := make(map[models.VerificationType]VerificationItemRequest, len(items))
	for _, item := range items {
		if !opp.HasVerificationType(item.Type) {
			problems = append(problems, "verification type '"+string(item.Type)+"' is not required by the opportunity")
			continue
		}
		if _, dup := byType[item.Type]; dup {
			problems = append(problems, "verification type '"+string(item.Type)+"' is specified more than once")
			continue
		}
		byType[item.Type] = item
	}

	out := make([]VerificationItemRequest, 0, len(opp.VerificationTypes))
	for _, vt := range opp.VerificationTypes {
		item, ok := byType[vt.VerificationType]
		if !ok {
			problems = append(problems, "verification type '"+string(vt.VerificationType)+"' is required")
			continue
		}
		if _, isFile := vt.VerificationType.FileType(); isFile && item.File == nil {
			problems = append(problems, "a file is required for verification type '"+string(vt.VerificationType)+"'")
			continue
		}
		if vt.VerificationType == models.VerificationTypeLocation {
			if item.Geometry == nil {
				problems = append(problems, "a location is required for verification type 'Location'")
				continue
			}
			if msg := checkGeometry(item.Geometry); msg != "" {
				problems = append(problems, msg)
				continue
			}
		}
		out = append(out, item)
	}
	if err := errs.Validations(problems); err != nil {
		return nil, err
	}
	return out, nil
}

func checkGeometry(g *Geometry) string {
	for _, c := range g.Coordinates {
		if len(c) < 2 {
			return "location coordinates require a longitude and a latitude"
		}
		if c[0] < -180 || c[0] > 180 {
			return "location longitude must be between -180 and 180"
		}
		if c[1] < -90 || c[1] > 90 {
			return "location latitude must be between -90 and 90"
		}
	}
	return ""
}

// UpdateVerificationStatus completes or rejects a pending verification.
func (s *MyOpportunityService) UpdateVerificationStatus(ctx context.Context, caller auth.Identity, req VerificationStatusRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx store.Store) error {
		return s.updateVerificationStatus(ctx, tx, caller, req)
	})
}

// UpdateVerificationStatusBulk applies every item in one transaction. If any
// item fails none are applied.
func (s *MyOpportunityService) UpdateVerificationStatusBulk(ctx context.Context, caller auth.Identity, req VerificationStatusBulkRequest) error {
	if err := validateStruct(req); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx store.Store) error {
		for _, item := range req.Items {
			if err := s.updateVerificationStatus(ctx, tx, caller, item); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *MyOpportunityService) updateVerificationStatus(ctx context.Context, tx store.Store, caller auth.Identity, req VerificationStatusRequest) error {
	opp, err := tx.Opportunities().Get(ctx, req.OpportunityID)
	if err != nil {
		return notFound(err, "Opportunity", req.OpportunityID)
	}
	if err := s.orgs.Authorize(ctx, caller, opp.OrganizationID); err != nil {
		return err
	}

	// Locked so that concurrent reviews of one request serialise on the
	// status check below.
	item, err := tx.MyOpportunities().FindForUpdate(ctx, req.UserID, req.OpportunityID, models.ActionVerification)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.NotFound("Verification request", req.UserID.String()+"/"+req.OpportunityID.String())
		}
		return err
	}

	current := deref(item.VerificationStatus)
	if !current.CanTransition(req.Status) {
		return errs.Validation("verification of opportunity '%s' can not be changed from '%s' to '%s'", opp.Title, current, req.Status)
	}

	item.VerificationStatus = ptr(req.Status)
	item.CommentVerification = strings.TrimSpace(req.Comment)

	if req.Status == models.VerificationStatusCompleted {
		alloc, err := s.opportunities.AllocateRewards(ctx, tx, opp.ID)
		if err != nil {
			return err
		}
		item.DateCompleted = ptr(s.Now())
		item.ZltoReward = alloc.ZltoReward
		item.YomaReward = alloc.YomaReward
	}

	if err := tx.MyOpportunities().Update(ctx, item); err != nil {
		return wrap(err, "failed to update verification status")
	}

	if req.Status != models.VerificationStatusCompleted {
		return nil
	}
	if amount := deref(item.ZltoReward); amount > 0 {
		if err := s.rewards.ScheduleRewardTransaction(ctx, tx, item.UserID, models.RewardSourceMyOpportunity, item.ID, amount); err != nil {
			return err
		}
	}
	if opp.CredentialIssuanceEnabled {
		if err := s.ssi.ScheduleIssuance(ctx, tx, item.UserID, item.ID, opp.SSISchemaName); err != nil {
			return err
		}
	}

	zerolog.Ctx(ctx).Info().
		Str("my_opportunity_id", item.ID.String()).
		Float64("zlto_reward", deref(item.ZltoReward)).
		Msg("verification completed")
	return nil
}

func (s *MyOpportunityService) Get(ctx context.Context, id uuid.UUID) (*models.MyOpportunity, error) {
	item, err := s.store.MyOpportunities().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "My opportunity", id)
	}
	s.fileURLs(ctx, item)
	return item, nil
}

func (s *MyOpportunityService) fileURLs(ctx context.Context, item *models.MyOpportunity) {
	for i := range item.Verifications {
		item.Verifications[i].FileURL = s.blobs.URL(ctx, item.Verifications[i].FileID)
	}
}

func (s *MyOpportunityService) Search(ctx context.Context, filter MyOpportunitySearchFilter) (*PagedResult[models.MyOpportunity], error) {
	items, total, err := s.store.MyOpportunities().Search(ctx, store.MyOpportunityFilter{
		UserID:               filter.UserID,
		OpportunityID:        filter.OpportunityID,
		OrganizationID:       filter.OrganizationID,
		Action:               filter.Action,
		VerificationStatuses: filter.VerificationStatuses,
		Page:                 filter.Page,
	})
	if err != nil {
		return nil, err
	}
	for i := range items {
		s.fileURLs(ctx, &items[i])
	}
	return paged(items, total), nil
}

func (s *MyOpportunityService) GetVerificationStatus(ctx context.Context, userID, oppID uuid.UUID) (*VerificationState, error) {
	item, err := s.store.MyOpportunities().Find(ctx, userID, oppID, models.ActionVerification)
	if errors.Is(err, store.ErrNotFound) {
		return &VerificationState{Status: verificationStatusNone}, nil
	}
	if err != nil {
		return nil, err
	}
	status := verificationStatusNone
	if item.VerificationStatus != nil {
		status = string(*item.VerificationStatus)
	}
	return &VerificationState{Status: status, Comment: item.CommentVerification}, nil
}
