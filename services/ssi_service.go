package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yoma-api/errs"
	"yoma-api/models"
	"yoma-api/providers/ssi"
	"yoma-api/store"
)

// CredentialProvider issues verifiable credentials.
type CredentialProvider interface {
	IssueCredential(ctx context.Context, req ssi.CredentialRequest) (string, error)
}

// SSIService schedules and issues credentials for completed opportunities.
type SSIService struct {
	clock
	store    store.Store
	lookups  *LookupService
	provider CredentialProvider
	cfg      LedgerConfig
}

func NewSSIService(st store.Store, lookups *LookupService, provider CredentialProvider, cfg LedgerConfig) *SSIService {
	return &SSIService{store: st, lookups: lookups, provider: provider, cfg: cfg.withDefaults()}
}

func (s *SSIService) ListSchemaEntities(ctx context.Context) ([]models.SSISchemaEntity, error) {
	return s.lookups.ListSchemaEntities(ctx)
}

func (s *SSIService) GetSchemaEntity(ctx context.Context, name string) (*models.SSISchemaEntity, error) {
	entities, err := s.ListSchemaEntities(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entities {
		if strings.EqualFold(string(e.TypeName), strings.TrimSpace(name)) {
			return &e, nil
		}
	}
	return nil, errs.NotFound("SSI schema entity", name)
}

// ScheduleIssuance records a pending credential issuance. It is idempotent
// per MyOpportunity.
func (s *SSIService) ScheduleIssuance(ctx context.Context, tx store.Store, userID, myOpportunityID uuid.UUID, schemaName string) error {
	if strings.TrimSpace(schemaName) == "" {
		return errs.Validation("a schema name is required to issue a credential")
	}

	if _, err := tx.CredentialIssuances().GetByMyOpportunity(ctx, myOpportunityID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	err := tx.CredentialIssuances().Create(ctx, &models.SSICredentialIssuance{
		ID:              uuid.New(),
		UserID:          userID,
		MyOpportunityID: myOpportunityID,
		SchemaName:      schemaName,
		Status:          models.ProcessingStatusPending,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	return err
}

// ListCredentials returns the user's issued credentials.
func (s *SSIService) ListCredentials(ctx context.Context, userID uuid.UUID) ([]models.SSICredentialIssuance, error) {
	status := models.ProcessingStatusSuccess
	items, err := s.store.CredentialIssuances().ListByUser(ctx, userID, &status)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.SSICredentialIssuance{}
	}
	return items, nil
}

// ProcessIssuances issues pending credentials with the provider.
func (s *SSIService) ProcessIssuances(ctx context.Context) (ProcessResult, error) {
	var result ProcessResult
	items, err := s.store.CredentialIssuances().ListForProcessing(ctx, s.cfg.query(s.Now()))
	if err != nil {
		return result, wrap(err, "failed to list credential issuances")
	}

	entities, err := s.ListSchemaEntities(ctx)
	if err != nil {
		return result, err
	}

	for i := range items {
		ci := &items[i]
		result.Processed++

		claimed, err := s.store.CredentialIssuances().Claim(ctx, ci)
		if err != nil {
			return result, wrap(err, "failed to claim credential issuance")
		}
		if !claimed {
			result.Skipped++
			continue
		}

		credentialID, callErr := s.issue(ctx, ci, entities)
		if callErr != nil {
			result.Failed++
			ci.ErrorReason = callErr.Error()
			ci.RetryCount++
			if err := s.transition(ctx, ci, models.ProcessingStatusError); err != nil {
				return result, err
			}
			zerolog.Ctx(ctx).Warn().Err(callErr).Str("credential_issuance_id", ci.ID.String()).Int("retry_count", ci.RetryCount).Msg("credential issuance failed")
			continue
		}

		ci.CredentialID = credentialID
		ci.ErrorReason = ""
		if err := s.transition(ctx, ci, models.ProcessingStatusSuccess); err != nil {
			return result, err
		}
		result.Succeeded++
	}
	return result, nil
}

func (s *SSIService) issue(ctx context.Context, ci *models.SSICredentialIssuance, entities []models.SSISchemaEntity) (string, error) {
	req, err := s.buildRequest(ctx, ci, entities)
	if err != nil {
		return "", err
	}
	return s.provider.IssueCredential(ctx, *req)
}

func (s *SSIService) buildRequest(ctx context.Context, ci *models.SSICredentialIssuance, entities []models.SSISchemaEntity) (*ssi.CredentialRequest, error) {
	user, err := s.store.Users().Get(ctx, ci.UserID)
	if err != nil {
		return nil, notFound(err, "User", ci.UserID)
	}
	mo, err := s.store.MyOpportunities().Get(ctx, ci.MyOpportunityID)
	if err != nil {
		return nil, notFound(err, "My opportunity", ci.MyOpportunityID)
	}
	opp, err := s.store.Opportunities().Get(ctx, mo.OpportunityID)
	if err != nil {
		return nil, notFound(err, "Opportunity", mo.OpportunityID)
	}

	attributes := make(map[string]string)
	for _, entity := range entities {
		for _, prop := range entity.Properties {
			value := schemaValue(entity.TypeName, prop.Name, user, opp, mo)
			if value == "" && prop.Required {
				return nil, errs.Validation("required attribute '%s' has no value", prop.AttributeName)
			}
			if value != "" {
				attributes[prop.AttributeName] = value
			}
		}
	}

	return &ssi.CredentialRequest{
		SchemaName: ci.SchemaName,
		HolderID:   user.ID.String(),
		Attributes: attributes,
		Reference:  ci.ID.String(),
	}, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.DateOnly)
}

// schemaValue resolves a schema entity property to its value.
func schemaValue(entity models.SSISchemaEntityType, property string, user *models.User, opp *models.Opportunity, mo *models.MyOpportunity) string {
	switch entity {
	case models.SSISchemaEntityUser:
		switch property {
		case "Email":
			return user.Email
		case "DisplayName":
			if user.DisplayName != "" {
				return user.DisplayName
			}
			if name := strings.TrimSpace(user.FirstName + " " + user.Surname); name != "" {
				return name
			}
			return user.Email
		case "FirstName":
			return user.FirstName
		case "Surname":
			return user.Surname
		case "DateOfBirth":
			return formatDate(user.DateOfBirth)
		}
	case models.SSISchemaEntityOpportunity:
		switch property {
		case "Title":
			return opp.Title
		case "Summary":
			return opp.Summary
		case "OrganizationName":
			return opp.OrganizationName
		}
	case models.SSISchemaEntityMyOpportunity:
		switch property {
		case "DateStart":
			return formatDate(mo.DateStart)
		case "DateEnd":
			return formatDate(mo.DateEnd)
		case "DateCompleted":
			return formatDate(mo.DateCompleted)
		}
	}
	return ""
}

func (s *SSIService) transition(ctx context.Context, ci *models.SSICredentialIssuance, next models.ProcessingStatus) error {
	if !ci.Status.CanTransition(next) {
		return errs.Validation("credential issuance '%s' can not move from '%s' to '%s'", ci.ID, ci.Status, next)
	}
	ci.Status = next
	return wrap(s.store.CredentialIssuances().Update(ctx, ci), "failed to update credential issuance")
}
