package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yoma-api/errs"
	"yoma-api/models"
	"yoma-api/providers/zlto"
	"yoma-api/store"
)

// WalletProvider creates and reads reward wallets.
type WalletProvider interface {
	CreateWallet(ctx context.Context, req zlto.WalletRequest) (*zlto.Wallet, error)
	GetBalance(ctx context.Context, walletID string) (float64, error)
}

// Wallet is a user's wallet with its live balance when available.
type Wallet struct {
	Status      models.ProcessingStatus `json:"status"`
	WalletID    string                  `json:"wallet_id,omitempty"`
	Balance     float64                 `json:"balance"`
	BalanceLive bool                    `json:"balance_live"`
	ErrorReason string                  `json:"error_reason,omitempty"`
}

// WalletService provisions wallets with the reward provider.
type WalletService struct {
	clock
	store    store.Store
	provider WalletProvider
	cfg      LedgerConfig
}

func NewWalletService(st store.Store, provider WalletProvider, cfg LedgerConfig) *WalletService {
	return &WalletService{store: st, provider: provider, cfg: cfg.withDefaults()}
}

// ScheduleCreation records a pending wallet creation for the user. It is
// idempotent.
func (s *WalletService) ScheduleCreation(ctx context.Context, tx store.Store, userID uuid.UUID) error {
	if _, err := tx.WalletCreations().GetByUser(ctx, userID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	err := tx.WalletCreations().Create(ctx, &models.WalletCreation{
		ID:     uuid.New(),
		UserID: userID,
		Status: models.ProcessingStatusPending,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	return err
}

// GetWallet returns the wallet record. Once created, the balance is read
// from the provider; the stored balance is returned if that call fails.
func (s *WalletService) GetWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	wc, err := s.store.WalletCreations().GetByUser(ctx, userID)
	if err != nil {
		return nil, notFound(err, "Wallet", userID)
	}

	w := &Wallet{
		Status:      wc.Status,
		WalletID:    wc.WalletID,
		Balance:     deref(wc.Balance),
		ErrorReason: wc.ErrorReason,
	}
	if wc.Status != models.ProcessingStatusSuccess {
		return w, nil
	}

	balance, err := s.provider.GetBalance(ctx, wc.WalletID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", userID.String()).Msg("failed to read live wallet balance")
		return w, nil
	}
	w.Balance = balance
	w.BalanceLive = true
	return w, nil
}

// WalletID returns the provider wallet of a user whose wallet was created.
func (s *WalletService) WalletID(ctx context.Context, userID uuid.UUID) (string, error) {
	wc, err := s.store.WalletCreations().GetByUser(ctx, userID)
	if err != nil {
		return "", notFound(err, "Wallet", userID)
	}
	if wc.Status != models.ProcessingStatusSuccess {
		return "", errs.Validation("wallet of user '%s' has not been created yet", userID)
	}
	return wc.WalletID, nil
}

// ProcessWalletCreations creates pending wallets with the provider.
func (s *WalletService) ProcessWalletCreations(ctx context.Context) (ProcessResult, error) {
	var result ProcessResult
	items, err := s.store.WalletCreations().ListForProcessing(ctx, s.cfg.query(s.Now()))
	if err != nil {
		return result, wrap(err, "failed to list wallet creations")
	}

	for i := range items {
		wc := &items[i]
		result.Processed++

		claimed, err := s.store.WalletCreations().Claim(ctx, wc)
		if err != nil {
			return result, wrap(err, "failed to claim wallet creation")
		}
		if !claimed {
			result.Skipped++
			continue
		}

		wallet, callErr := s.create(ctx, wc)
		if callErr != nil {
			result.Failed++
			wc.ErrorReason = callErr.Error()
			wc.RetryCount++
			if err := s.transition(ctx, wc, models.ProcessingStatusError); err != nil {
				return result, err
			}
			zerolog.Ctx(ctx).Warn().Err(callErr).Str("user_id", wc.UserID.String()).Int("retry_count", wc.RetryCount).Msg("wallet creation failed")
			continue
		}

		wc.WalletID = wallet.WalletID
		wc.Balance = ptr(wallet.Balance)
		wc.ErrorReason = ""
		if err := s.transition(ctx, wc, models.ProcessingStatusSuccess); err != nil {
			return result, err
		}
		result.Succeeded++
	}
	return result, nil
}

func (s *WalletService) create(ctx context.Context, wc *models.WalletCreation) (*zlto.Wallet, error) {
	user, err := s.store.Users().Get(ctx, wc.UserID)
	if err != nil {
		return nil, notFound(err, "User", wc.UserID)
	}
	return s.provider.CreateWallet(ctx, zlto.WalletRequest{
		ExternalID:  user.ID.String(),
		Email:       user.Email,
		DisplayName: user.DisplayName,
	})
}

func (s *WalletService) transition(ctx context.Context, wc *models.WalletCreation, next models.ProcessingStatus) error {
	if !wc.Status.CanTransition(next) {
		return errs.Validation("wallet creation '%s' can not move from '%s' to '%s'", wc.ID, wc.Status, next)
	}
	wc.Status = next
	return wrap(s.store.WalletCreations().Update(ctx, wc), "failed to update wallet creation")
}
