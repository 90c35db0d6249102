package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"yoma-api/models"
	"yoma-api/store"
)

// processable selects pending records, errored records that may still be
// retried and stale Processing records, oldest first.
func processable(q *gorm.DB, pq store.ProcessingQuery) *gorm.DB {
	return q.Where("status = ? OR (status = ? AND retry_count < ?) OR (status = ? AND retry_count < ? AND updated_at < ?)",
		models.ProcessingStatusPending,
		models.ProcessingStatusError, pq.MaxRetries,
		models.ProcessingStatusProcessing, pq.MaxRetries, pq.StaleBefore).
		Order("created_at ASC").
		Limit(pq.Limit)
}

// claim moves a ledger row of T to Processing when its status and retry
// count still match what the caller read. The caller's copy is updated on
// success.
func claim[T any](q *gorm.DB, id uuid.UUID, status *models.ProcessingStatus, retries *int, updated *time.Time) (bool, error) {
	next := *retries
	if *status == models.ProcessingStatusProcessing {
		next++
	}
	now := time.Now().UTC().Truncate(time.Microsecond)

	res := q.Model(new(T)).
		Where("id = ? AND status = ? AND retry_count = ?", id, *status, *retries).
		Updates(map[string]any{
			"status":      models.ProcessingStatusProcessing,
			"retry_count": next,
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	*status, *retries, *updated = models.ProcessingStatusProcessing, next, now
	return true, nil
}

type rewardTransactionRepository struct {
	db *gorm.DB
}

func (r *rewardTransactionRepository) Create(ctx context.Context, tx *models.RewardTransaction) error {
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("failed to create reward transaction: %w", mapError(err))
	}
	return nil
}

func (r *rewardTransactionRepository) Update(ctx context.Context, tx *models.RewardTransaction) error {
	if err := r.db.WithContext(ctx).Save(tx).Error; err != nil {
		return fmt.Errorf("failed to update reward transaction: %w", mapError(err))
	}
	return nil
}

func (r *rewardTransactionRepository) GetByMyOpportunity(ctx context.Context, myOpportunityID uuid.UUID) (*models.RewardTransaction, error) {
	var tx models.RewardTransaction
	if err := r.db.WithContext(ctx).First(&tx, "my_opportunity_id = ?", myOpportunityID).Error; err != nil {
		return nil, mapError(err)
	}
	return &tx, nil
}

func (r *rewardTransactionRepository) ListForProcessing(ctx context.Context, pq store.ProcessingQuery) ([]models.RewardTransaction, error) {
	walletReady := r.db.Table("wallet_creations").
		Select("1").
		Where("wallet_creations.user_id = reward_transactions.user_id AND wallet_creations.status = ?", models.ProcessingStatusSuccess)

	var items []models.RewardTransaction
	q := processable(r.db.WithContext(ctx), pq).Where("EXISTS (?)", walletReady)
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list reward transactions for processing: %w", mapError(err))
	}
	return items, nil
}

func (r *rewardTransactionRepository) Claim(ctx context.Context, tx *models.RewardTransaction) (bool, error) {
	ok, err := claim[models.RewardTransaction](r.db.WithContext(ctx), tx.ID, &tx.Status, &tx.RetryCount, &tx.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to claim reward transaction: %w", err)
	}
	return ok, nil
}

func (r *rewardTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, updatedSince *time.Time) ([]models.RewardTransaction, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if updatedSince != nil {
		q = q.Where("updated_at > ?", *updatedSince)
	}

	var items []models.RewardTransaction
	if err := q.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list reward transactions: %w", mapError(err))
	}
	return items, nil
}

type walletCreationRepository struct {
	db *gorm.DB
}

func (r *walletCreationRepository) Create(ctx context.Context, wc *models.WalletCreation) error {
	if err := r.db.WithContext(ctx).Create(wc).Error; err != nil {
		return fmt.Errorf("failed to create wallet creation: %w", mapError(err))
	}
	return nil
}

func (r *walletCreationRepository) Update(ctx context.Context, wc *models.WalletCreation) error {
	if err := r.db.WithContext(ctx).Save(wc).Error; err != nil {
		return fmt.Errorf("failed to update wallet creation: %w", mapError(err))
	}
	return nil
}

func (r *walletCreationRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*models.WalletCreation, error) {
	var wc models.WalletCreation
	if err := r.db.WithContext(ctx).First(&wc, "user_id = ?", userID).Error; err != nil {
		return nil, mapError(err)
	}
	return &wc, nil
}

func (r *walletCreationRepository) ListForProcessing(ctx context.Context, pq store.ProcessingQuery) ([]models.WalletCreation, error) {
	var items []models.WalletCreation
	if err := processable(r.db.WithContext(ctx), pq).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list wallet creations for processing: %w", mapError(err))
	}
	return items, nil
}

func (r *walletCreationRepository) Claim(ctx context.Context, wc *models.WalletCreation) (bool, error) {
	ok, err := claim[models.WalletCreation](r.db.WithContext(ctx), wc.ID, &wc.Status, &wc.RetryCount, &wc.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to claim wallet creation: %w", err)
	}
	return ok, nil
}

type credentialIssuanceRepository struct {
	db *gorm.DB
}

func (r *credentialIssuanceRepository) Create(ctx context.Context, ci *models.SSICredentialIssuance) error {
	if err := r.db.WithContext(ctx).Create(ci).Error; err != nil {
		return fmt.Errorf("failed to create credential issuance: %w", mapError(err))
	}
	return nil
}

func (r *credentialIssuanceRepository) Update(ctx context.Context, ci *models.SSICredentialIssuance) error {
	if err := r.db.WithContext(ctx).Save(ci).Error; err != nil {
		return fmt.Errorf("failed to update credential issuance: %w", mapError(err))
	}
	return nil
}

func (r *credentialIssuanceRepository) GetByMyOpportunity(ctx context.Context, myOpportunityID uuid.UUID) (*models.SSICredentialIssuance, error) {
	var ci models.SSICredentialIssuance
	if err := r.db.WithContext(ctx).First(&ci, "my_opportunity_id = ?", myOpportunityID).Error; err != nil {
		return nil, mapError(err)
	}
	return &ci, nil
}

func (r *credentialIssuanceRepository) ListForProcessing(ctx context.Context, pq store.ProcessingQuery) ([]models.SSICredentialIssuance, error) {
	var items []models.SSICredentialIssuance
	if err := processable(r.db.WithContext(ctx), pq).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list credential issuances for processing: %w", mapError(err))
	}
	return items, nil
}

func (r *credentialIssuanceRepository) Claim(ctx context.Context, ci *models.SSICredentialIssuance) (bool, error) {
	ok, err := claim[models.SSICredentialIssuance](r.db.WithContext(ctx), ci.ID, &ci.Status, &ci.RetryCount, &ci.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to claim credential issuance: %w", err)
	}
	return ok, nil
}

func (r *credentialIssuanceRepository) ListByUser(ctx context.Context, userID uuid.UUID, status *models.ProcessingStatus) ([]models.SSICredentialIssuance, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if status != nil {
		q = q.Where("status = ?", *status)
	}

	var items []models.SSICredentialIssuance
	if err := q.Order("created_at DESC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list credential issuances: %w", mapError(err))
	}
	return items, nil
}
