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
	"yoma-api/store"
)

type UserRequest struct {
	Email       string     `json:"email" validate:"required,email,max=320"`
	FirstName   string     `json:"first_name" validate:"max=125"`
	Surname     string     `json:"surname" validate:"max=125"`
	DisplayName string     `json:"display_name" validate:"max=255"`
	PhoneNumber string     `json:"phone_number" validate:"omitempty,e164"`
	CountryCode string     `json:"country_code" validate:"omitempty,len=2"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	ExternalID  *uuid.UUID `json:"external_id"`
	// EmailConfirmed is set by the identity provider sync.
	EmailConfirmed bool `json:"email_confirmed"`
}

type UserProfileRequest struct {
	FirstName   string     `json:"first_name" validate:"notblank,max=125"`
	Surname     string     `json:"surname" validate:"notblank,max=125"`
	DisplayName string     `json:"display_name" validate:"max=255"`
	PhoneNumber string     `json:"phone_number" validate:"omitempty,e164"`
	CountryCode string     `json:"country_code" validate:"omitempty,len=2"`
	DateOfBirth *time.Time `json:"date_of_birth"`
}

type UserSearchFilter struct {
	ValueContains string `query:"value_contains"`
	store.Page
}

// UserService manages youth and admin user records.
type UserService struct {
	clock
	store   store.Store
	wallets *WalletService
}

func NewUserService(st store.Store, wallets *WalletService) *UserService {
	return &UserService{store: st, wallets: wallets}
}

// Upsert creates the user for the e-mail or updates the existing one. New
// users get a wallet creation scheduled in the same transaction.
func (s *UserService) Upsert(ctx context.Context, req UserRequest) (*models.User, bool, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validateStruct(req); err != nil {
		return nil, false, err
	}
	if req.DateOfBirth != nil && req.DateOfBirth.After(s.Now()) {
		return nil, false, errs.Validation("'date_of_birth' can not be in the future")
	}

	var (
		user    *models.User
		created bool
	)
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		existing, err := tx.Users().GetByEmail(ctx, req.Email)
		switch {
		case errors.Is(err, store.ErrNotFound):
			user = &models.User{ID: uuid.New()}
			applyUserRequest(user, req)
			user.DateLastLogin = ptr(s.Now())
			if err := tx.Users().Create(ctx, user); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					return errs.Conflict("user with email '%s' already exists", user.Email)
				}
				return wrap(err, "failed to create user")
			}
			created = true
			return s.wallets.ScheduleCreation(ctx, tx, user.ID)
		case err != nil:
			return err
		}

		user = existing
		applyUserRequest(user, req)
		user.DateLastLogin = ptr(s.Now())
		return wrap(tx.Users().Update(ctx, user), "failed to update user")
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		zerolog.Ctx(ctx).Info().Str("user_id", user.ID.String()).Msg("user created")
	}
	return user, created, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func applyUserRequest(user *models.User, req UserRequest) {
	user.Email = normalizeEmail(req.Email)
	user.EmailConfirmed = user.EmailConfirmed || req.EmailConfirmed
	if req.FirstName != "" {
		user.FirstName = strings.TrimSpace(req.FirstName)
	}
	if req.Surname != "" {
		user.Surname = strings.TrimSpace(req.Surname)
	}
	if req.DisplayName != "" {
		user.DisplayName = strings.TrimSpace(req.DisplayName)
	}
	if user.DisplayName == "" {
		user.DisplayName = strings.TrimSpace(user.FirstName + " " + user.Surname)
	}
	if req.PhoneNumber != "" {
		user.PhoneNumber = req.PhoneNumber
	}
	if req.CountryCode != "" {
		user.CountryCode = strings.ToUpper(req.CountryCode)
	}
	if req.DateOfBirth != nil {
		user.DateOfBirth = req.DateOfBirth
	}
	if req.ExternalID != nil {
		user.ExternalID = req.ExternalID
	}
}

func (s *UserService) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.store.Users().Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "User", id)
	}
	return user, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.store.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, notFound(err, "User", email)
	}
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, id uuid.UUID, req UserProfileRequest) (*models.User, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if req.DateOfBirth != nil && req.DateOfBirth.After(s.Now()) {
		return nil, errs.Validation("'date_of_birth' can not be in the future")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	user.FirstName = strings.TrimSpace(req.FirstName)
	user.Surname = strings.TrimSpace(req.Surname)
	user.DisplayName = strings.TrimSpace(req.DisplayName)
	if user.DisplayName == "" {
		user.DisplayName = user.FirstName + " " + user.Surname
	}
	user.PhoneNumber = req.PhoneNumber
	user.CountryCode = strings.ToUpper(req.CountryCode)
	user.DateOfBirth = req.DateOfBirth

	if err := s.store.Users().Update(ctx, user); err != nil {
		return nil, wrap(err, "failed to update user")
	}
	return user, nil
}

func (s *UserService) Search(ctx context.Context, filter UserSearchFilter) (*PagedResult[models.User], error) {
	items, total, err := s.store.Users().Search(ctx, store.UserFilter{
		ValueContains: strings.TrimSpace(filter.ValueContains),
		Page:          filter.Page,
	})
	if err != nil {
		return nil, err
	}
	return paged(items, total), nil
}
