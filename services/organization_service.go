package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"

	"yoma-api/auth"
	"yoma-api/errs"
	"yoma-api/models"
	"yoma-api/store"
	"yoma-api/utils"
)

var organizationTransitions = map[models.OrganizationStatus][]models.OrganizationStatus{
	models.OrganizationStatusInactive: {models.OrganizationStatusActive, models.OrganizationStatusDeclined, models.OrganizationStatusDeleted},
	models.OrganizationStatusActive:   {models.OrganizationStatusInactive, models.OrganizationStatusDeleted},
	models.OrganizationStatusDeclined: {models.OrganizationStatusInactive, models.OrganizationStatusDeleted},
}

type OrganizationRequest struct {
	Name                string `json:"name" validate:"notblank,max=80"`
	WebsiteURL          string `json:"website_url" validate:"omitempty,http_url,max=2048"`
	PrimaryContactName  string `json:"primary_contact_name" validate:"max=255"`
	PrimaryContactEmail string `json:"primary_contact_email" validate:"omitempty,email"`
	Tagline             string `json:"tagline" validate:"max=160"`
	Biography           string `json:"biography"`
	CountryCode         string `json:"country_code" validate:"omitempty,len=2"`
	// AdminEmails are made admins of the organisation alongside the caller.
	AdminEmails []string `json:"admin_emails" validate:"dive,email"`
}

type OrganizationStatusRequest struct {
	Status  models.OrganizationStatus `json:"status" validate:"required"`
	Comment string                    `json:"comment"`
}

type OrganizationSearchFilter struct {
	ValueContains string                      `query:"value_contains"`
	Statuses      []models.OrganizationStatus `query:"statuses"`
	store.Page
}

// OrganizationService manages partner organisations and their admins.
type OrganizationService struct {
	clock
	store store.Store
	blobs *BlobService
}

func NewOrganizationService(st store.Store, blobs *BlobService) *OrganizationService {
	return &OrganizationService{store: st, blobs: blobs}
}

// NameHash is the case-insensitive identity of an organisation name.
func NameHash(name string) string {
	folded := cases.Fold().String(strings.TrimSpace(name))
	sum := sha256.Sum256([]byte(folded))
	return hex.EncodeToString(sum[:])
}

func (s *OrganizationService) Create(ctx context.Context, caller auth.Identity, req OrganizationRequest, logo *utils.File) (*models.Organization, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	org := &models.Organization{
		ID:                 uuid.New(),
		Status:             models.OrganizationStatusInactive,
		DateStatusModified: s.Now(),
	}
	applyOrganizationRequest(org, req)

	err := s.blobs.Transaction(ctx, func(tx store.Store, up *Uploader) error {
		if err := s.ensureUniqueName(ctx, tx, org); err != nil {
			return err
		}
		if err := s.assignSlug(ctx, tx, org); err != nil {
			return err
		}
		if logo != nil {
			obj, err := up.Upload(ctx, models.FileTypePhotos, *logo)
			if err != nil {
				return err
			}
			org.LogoID = &obj.ID
		}
		if err := tx.Organizations().Create(ctx, org); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errs.Conflict("organization '%s' already exists", org.Name)
			}
			return wrap(err, "failed to create organization")
		}

		admins := append([]string{}, req.AdminEmails...)
		if caller.Email != "" {
			admins = append(admins, caller.Email)
		}
		return s.addAdmins(ctx, tx, org.ID, admins)
	})
	if err != nil {
		return nil, err
	}

	zerolog.Ctx(ctx).Info().Str("organization_id", org.ID.String()).Str("name", org.Name).Msg("organization created")
	return s.Get(ctx, org.ID)
}

func (s *OrganizationService) Update(ctx context.Context, caller auth.Identity, id uuid.UUID, req OrganizationRequest, logo *utils.File) (*models.Organization, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if err := s.Authorize(ctx, caller, id); err != nil {
		return nil, err
	}

	err := s.blobs.Transaction(ctx, func(tx store.Store, up *Uploader) error {
		org, err := tx.Organizations().Get(ctx, id)
		if err != nil {
			return notFound(err, "Organization", id)
		}
		if org.Status == models.OrganizationStatusDeleted {
			return errs.Validation("organization '%s' has been deleted", org.Name)
		}

		renamed := NameHash(req.Name) != org.NameHashValue
		applyOrganizationRequest(org, req)
		if renamed {
			if err := s.ensureUniqueName(ctx, tx, org); err != nil {
				return err
			}
			if err := s.assignSlug(ctx, tx, org); err != nil {
				return err
			}
		}

		if logo != nil {
			obj, err := up.Upload(ctx, models.FileTypePhotos, *logo)
			if err != nil {
				return err
			}
			if org.LogoID != nil {
				if err := up.Remove(ctx, *org.LogoID); err != nil && !errs.IsNotFound(err) {
					return err
				}
			}
			org.LogoID = &obj.ID
		}

		if err := tx.Organizations().Update(ctx, org); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return errs.Conflict("organization '%s' already exists", org.Name)
			}
			return wrap(err, "failed to update organization")
		}
		return s.addAdmins(ctx, tx, org.ID, req.AdminEmails)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func applyOrganizationRequest(org *models.Organization, req OrganizationRequest) {
	org.Name = strings.TrimSpace(req.Name)
	org.NameHashValue = NameHash(req.Name)
	org.WebsiteURL = strings.TrimSpace(req.WebsiteURL)
	org.PrimaryContactName = strings.TrimSpace(req.PrimaryContactName)
	org.PrimaryContactEmail = strings.ToLower(strings.TrimSpace(req.PrimaryContactEmail))
	org.Tagline = strings.TrimSpace(req.Tagline)
	org.Biography = strings.TrimSpace(req.Biography)
	org.CountryCode = strings.ToUpper(req.CountryCode)
}

func (s *OrganizationService) ensureUniqueName(ctx context.Context, tx store.Store, org *models.Organization) error {
	existing, err := tx.Organizations().GetByNameHash(ctx, org.NameHashValue)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != org.ID:
		return errs.Conflict("organization '%s' already exists", org.Name)
	}
	return nil
}

// assignSlug derives a slug from the name, adding a counter when another
// organisation already uses it.
func (s *OrganizationService) assignSlug(ctx context.Context, tx store.Store, org *models.Organization) error {
	base := slug.Make(org.Name)
	if base == "" {
		base = "organization"
	}
	candidate := base
	for i := 2; ; i++ {
		existing, err := tx.Organizations().GetBySlug(ctx, candidate)
		if errors.Is(err, store.ErrNotFound) || (err == nil && existing.ID == org.ID) {
			org.Slug = candidate
			return nil
		}
		if err != nil {
			return err
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

func (s *OrganizationService) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	org, err := s.store.Organizations().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Organization", id)
	}
	org.LogoURL = s.blobs.URL(ctx, org.LogoID)
	return org, nil
}

func (s *OrganizationService) GetBySlug(ctx context.Context, value string) (*models.Organization, error) {
	org, err := s.store.Organizations().GetBySlug(ctx, strings.ToLower(value))
	if err != nil {
		return nil, notFound(err, "Organization", value)
	}
	org.LogoURL = s.blobs.URL(ctx, org.LogoID)
	return org, nil
}

func (s *OrganizationService) Search(ctx context.Context, filter OrganizationSearchFilter) (*PagedResult[models.Organization], error) {
	items, total, err := s.store.Organizations().Search(ctx, store.OrganizationFilter{
		ValueContains: strings.TrimSpace(filter.ValueContains),
		Statuses:      filter.Statuses,
		Page:          filter.Page,
	})
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].LogoURL = s.blobs.URL(ctx, items[i].LogoID)
	}
	return paged(items, total), nil
}

// UpdateStatus moves the organisation through its approval workflow.
// Declining requires a comment.
func (s *OrganizationService) UpdateStatus(ctx context.Context, id uuid.UUID, req OrganizationStatusRequest) (*models.Organization, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	err := s.store.Transaction(ctx, func(tx store.Store) error {
		org, err := tx.Organizations().Get(ctx, id)
		if err != nil {
			return notFound(err, "Organization", id)
		}
		if org.Status == req.Status {
			return nil
		}

		allowed := false
		for _, next := range organizationTransitions[org.Status] {
			if next == req.Status {
				allowed = true
			}
		}
		if !allowed {
			return errs.Validation("status of organization '%s' can not be changed from '%s' to '%s'", org.Name, org.Status, req.Status)
		}
		if req.Status == models.OrganizationStatusDeclined && strings.TrimSpace(req.Comment) == "" {
			return errs.Validation("a comment is required when declining an organization")
		}

		org.Status = req.Status
		org.CommentApproval = strings.TrimSpace(req.Comment)
		org.DateStatusModified = s.Now()
		return tx.Organizations().Update(ctx, org)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// AssignAdmins makes the users with the given e-mails admins of the organisation.
func (s *OrganizationService) AssignAdmins(ctx context.Context, caller auth.Identity, orgID uuid.UUID, emails []string) error {
	if err := s.Authorize(ctx, caller, orgID); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx store.Store) error {
		return s.addAdmins(ctx, tx, orgID, emails)
	})
}

func (s *OrganizationService) addAdmins(ctx context.Context, tx store.Store, orgID uuid.UUID, emails []string) error {
	for _, email := range emails {
		user, err := tx.Users().GetByEmail(ctx, strings.TrimSpace(email))
		if err != nil {
			return notFound(err, "User", email)
		}
		if err := tx.Organizations().AddAdmin(ctx, orgID, user.ID); err != nil {
			return wrap(err, "failed to add organization admin")
		}
	}
	return nil
}

func (s *OrganizationService) RemoveAdmins(ctx context.Context, caller auth.Identity, orgID uuid.UUID, emails []string) error {
	if err := s.Authorize(ctx, caller, orgID); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx store.Store) error {
		for _, email := range emails {
			user, err := tx.Users().GetByEmail(ctx, strings.TrimSpace(email))
			if err != nil {
				return notFound(err, "User", email)
			}
			if err := tx.Organizations().RemoveAdmin(ctx, orgID, user.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		return nil
	})
}

func (s *OrganizationService) ListAdmins(ctx context.Context, caller auth.Identity, orgID uuid.UUID) ([]models.User, error) {
	if err := s.Authorize(ctx, caller, orgID); err != nil {
		return nil, err
	}
	return s.store.Organizations().ListAdmins(ctx, orgID)
}

// ListAdministered returns the organisations the user administers.
func (s *OrganizationService) ListAdministered(ctx context.Context, userID uuid.UUID) ([]models.Organization, error) {
	return s.store.Organizations().ListByAdmin(ctx, userID)
}

func (s *OrganizationService) IsAdmin(ctx context.Context, orgID, userID uuid.UUID) (bool, error) {
	return s.store.Organizations().IsAdmin(ctx, orgID, userID)
}

// Authorize passes admins and organisation admins of orgID.
func (s *OrganizationService) Authorize(ctx context.Context, caller auth.Identity, orgID uuid.UUID) error {
	if caller.IsAdmin() {
		return nil
	}
	if caller.HasRole(auth.RoleOrganisationAdmin) {
		ok, err := s.IsAdmin(ctx, orgID, caller.UserID)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return errs.Forbidden("user is not an admin of organization '%s'", orgID)
}
