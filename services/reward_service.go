package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yoma-api/errs"
	"yoma-api/models"
	"yoma-api/providers/zlto"
	"yoma-api/store"
)

// RewardProvider credits rewards to wallets.
type RewardProvider interface {
	RewardEarn(ctx context.Context, req zlto.EarnRequest) (string, error)
}

// RewardService keeps the append-only reward ledger and pushes entries to
// the reward provider.
type RewardService struct {
	clock
	store    store.Store
	provider RewardProvider
	cfg      LedgerConfig
}

func NewRewardService(st store.Store, provider RewardProvider, cfg LedgerConfig) *RewardService {
	return &RewardService{store: st, provider: provider, cfg: cfg.withDefaults()}
}

// ScheduleRewardTransaction records a pending reward for a completed
// opportunity. A second call for the same MyOpportunity is a no-op.
func (s *RewardService) ScheduleRewardTransaction(ctx context.Context, tx store.Store, userID uuid.UUID, source models.RewardSourceEntityType, myOpportunityID uuid.UUID, amount float64) error {
	if amount <= 0 {
		return errs.Validation("reward amount must be greater than 0")
	}
	if source != models.RewardSourceMyOpportunity {
		return errs.Validation("reward source '%s' is not supported", source)
	}

	if _, err := tx.RewardTransactions().GetByMyOpportunity(ctx, myOpportunityID); err == nil {
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	err := tx.RewardTransactions().Create(ctx, &models.RewardTransaction{
		ID:               uuid.New(),
		UserID:           userID,
		SourceEntityType: source,
		MyOpportunityID:  &myOpportunityID,
		Amount:           amount,
		Status:           models.ProcessingStatusPending,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil
	}
	return err
}

// ListTransactions returns the user's ledger, newest first. When since is
// set only entries changed after it are returned.
func (s *RewardService) ListTransactions(ctx context.Context, userID uuid.UUID, since *time.Time) ([]models.RewardTransaction, error) {
	items, err := s.store.RewardTransactions().ListByUser(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.RewardTransaction{}
	}
	return items, nil
}

// ProcessRewardTransactions pushes pending ledger entries to the provider.
// Entries of users without a created wallet are not picked up until the
// wallet exists.
func (s *RewardService) ProcessRewardTransactions(ctx context.Context) (ProcessResult, error) {
	var result ProcessResult
	items, err := s.store.RewardTransactions().ListForProcessing(ctx, s.cfg.query(s.Now()))
	if err != nil {
		return result, wrap(err, "failed to list reward transactions")
	}

	for i := range items {
		rt := &items[i]
		result.Processed++

		claimed, err := s.store.RewardTransactions().Claim(ctx, rt)
		if err != nil {
			return result, wrap(err, "failed to claim reward transaction")
		}
		if !claimed {
			result.Skipped++
			continue
		}

		txID, callErr := s.earn(ctx, rt)
		if callErr != nil {
			result.Failed++
			rt.ErrorReason = callErr.Error()
			rt.RetryCount++
			if err := s.transition(ctx, rt, models.ProcessingStatusError); err != nil {
				return result, err
			}
			zerolog.Ctx(ctx).Warn().Err(callErr).Str("reward_transaction_id", rt.ID.String()).Int("retry_count", rt.RetryCount).Msg("reward transaction failed")
			continue
		}

		rt.TransactionID = txID
		rt.ErrorReason = ""
		if err := s.transition(ctx, rt, models.ProcessingStatusSuccess); err != nil {
			return result, err
		}
		result.Succeeded++
	}
	return result, nil
}

// earn credits one entry. The entry ID is the provider reference, so a
// repeated call for the same entry is not paid twice.
func (s *RewardService) earn(ctx context.Context, rt *models.RewardTransaction) (string, error) {
	wallet, err := s.store.WalletCreations().GetByUser(ctx, rt.UserID)
	if err != nil {
		return "", notFound(err, "Wallet", rt.UserID)
	}
	if wallet.Status != models.ProcessingStatusSuccess {
		return "", errs.Validation("wallet of user '%s' has not been created yet", rt.UserID)
	}
	return s.provider.RewardEarn(ctx, zlto.EarnRequest{
		WalletID:    wallet.WalletID,
		Amount:      rt.Amount,
		Reference:   rt.ID.String(),
		Description: string(rt.SourceEntityType),
	})
}

func (s *RewardService) transition(ctx context.Context, rt *models.RewardTransaction, next models.ProcessingStatus) error {
	if !rt.Status.CanTransition(next) {
		return errs.Validation("reward transaction '%s' can not move from '%s' to '%s'", rt.ID, rt.Status, next)
	}
	rt.Status = next
	return wrap(s.store.RewardTransactions().Update(ctx, rt), "failed to update reward transaction")
}
