package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"yoma-api/models"
	"yoma-api/store"
)

func processable(status models.ProcessingStatus, retries int, updated time.Time, q store.ProcessingQuery) bool {
	switch status {
	case models.ProcessingStatusPending:
		return true
	case models.ProcessingStatusError:
		return retries < q.MaxRetries
	case models.ProcessingStatusProcessing:
		return retries < q.MaxRetries && updated.Before(q.StaleBefore)
	}
	return false
}

// claim is the compare-and-set behind the Claim methods. The caller holds
// the write lock.
func claim(seenStatus *models.ProcessingStatus, seenRetries *int, seenUpdated *time.Time, stored *models.ProcessingStatus, storedRetries *int, storedUpdated *time.Time) bool {
	if *stored != *seenStatus || *storedRetries != *seenRetries {
		return false
	}
	next := *seenRetries
	if *seenStatus == models.ProcessingStatusProcessing {
		next++
	}
	*stored, *storedRetries = models.ProcessingStatusProcessing, next
	touch(nil, storedUpdated)
	*seenStatus, *seenRetries, *seenUpdated = *stored, next, *storedUpdated
	return true
}

func (s *state) walletReady(userID uuid.UUID) bool {
	for _, wc := range s.d.wallets {
		if wc.UserID == userID {
			return wc.Status == models.ProcessingStatusSuccess
		}
	}
	return false
}

func limit[T any](items []T, n int) []T {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}

type rewardTransactionRepository struct {
	s *state
}

func (r *rewardTransactionRepository) Create(ctx context.Context, tx *models.RewardTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	for _, existing := range r.s.d.rewards {
		if existing.ID == tx.ID {
			return store.ErrDuplicate
		}
		if tx.MyOpportunityID != nil && existing.MyOpportunityID != nil && *existing.MyOpportunityID == *tx.MyOpportunityID {
			return store.ErrDuplicate
		}
	}

	touch(&tx.CreatedAt, &tx.UpdatedAt)
	r.s.d.rewards[tx.ID] = *tx
	return nil
}

func (r *rewardTransactionRepository) Update(ctx context.Context, tx *models.RewardTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.d.rewards[tx.ID]; !exists {
		return store.ErrNotFound
	}
	touch(nil, &tx.UpdatedAt)
	r.s.d.rewards[tx.ID] = *tx
	return nil
}

func (r *rewardTransactionRepository) GetByMyOpportunity(ctx context.Context, myOpportunityID uuid.UUID) (*models.RewardTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, tx := range r.s.d.rewards {
		if tx.MyOpportunityID != nil && *tx.MyOpportunityID == myOpportunityID {
			return &tx, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *rewardTransactionRepository) ListForProcessing(ctx context.Context, q store.ProcessingQuery) ([]models.RewardTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.RewardTransaction
	for _, tx := range r.s.d.rewards {
		if processable(tx.Status, tx.RetryCount, tx.UpdatedAt, q) && r.s.walletReady(tx.UserID) {
			result = append(result, tx)
		}
	}
	sortBy(result, func(a, b models.RewardTransaction) bool { return a.CreatedAt.Before(b.CreatedAt) })
	return limit(result, q.Limit), nil
}

func (r *rewardTransactionRepository) Claim(ctx context.Context, tx *models.RewardTransaction) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, exists := r.s.d.rewards[tx.ID]
	if !exists {
		return false, store.ErrNotFound
	}
	if !claim(&tx.Status, &tx.RetryCount, &tx.UpdatedAt, &stored.Status, &stored.RetryCount, &stored.UpdatedAt) {
		return false, nil
	}
	r.s.d.rewards[tx.ID] = stored
	return true, nil
}

func (r *rewardTransactionRepository) ListByUser(ctx context.Context, userID uuid.UUID, updatedSince *time.Time) ([]models.RewardTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.RewardTransaction
	for _, tx := range r.s.d.rewards {
		if tx.UserID != userID {
			continue
		}
		if updatedSince != nil && !tx.UpdatedAt.After(*updatedSince) {
			continue
		}
		result = append(result, tx)
	}
	sortBy(result, func(a, b models.RewardTransaction) bool { return a.CreatedAt.After(b.CreatedAt) })
	return result, nil
}

type walletCreationRepository struct {
	s *state
}

func (r *walletCreationRepository) Create(ctx context.Context, wc *models.WalletCreation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if wc.ID == uuid.Nil {
		wc.ID = uuid.New()
	}
	for _, existing := range r.s.d.wallets {
		if existing.ID == wc.ID || existing.UserID == wc.UserID {
			return store.ErrDuplicate
		}
	}

	touch(&wc.CreatedAt, &wc.UpdatedAt)
	r.s.d.wallets[wc.ID] = *wc
	return nil
}

func (r *walletCreationRepository) Update(ctx context.Context, wc *models.WalletCreation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.d.wallets[wc.ID]; !exists {
		return store.ErrNotFound
	}
	touch(nil, &wc.UpdatedAt)
	r.s.d.wallets[wc.ID] = *wc
	return nil
}

func (r *walletCreationRepository) GetByUser(ctx context.Context, userID uuid.UUID) (*models.WalletCreation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, wc := range r.s.d.wallets {
		if wc.UserID == userID {
			return &wc, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *walletCreationRepository) ListForProcessing(ctx context.Context, q store.ProcessingQuery) ([]models.WalletCreation, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.WalletCreation
	for _, wc := range r.s.d.wallets {
		if processable(wc.Status, wc.RetryCount, wc.UpdatedAt, q) {
			result = append(result, wc)
		}
	}
	sortBy(result, func(a, b models.WalletCreation) bool { return a.CreatedAt.Before(b.CreatedAt) })
	return limit(result, q.Limit), nil
}

func (r *walletCreationRepository) Claim(ctx context.Context, wc *models.WalletCreation) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, exists := r.s.d.wallets[wc.ID]
	if !exists {
		return false, store.ErrNotFound
	}
	if !claim(&wc.Status, &wc.RetryCount, &wc.UpdatedAt, &stored.Status, &stored.RetryCount, &stored.UpdatedAt) {
		return false, nil
	}
	r.s.d.wallets[wc.ID] = stored
	return true, nil
}

type credentialIssuanceRepository struct {
	s *state
}

func (r *credentialIssuanceRepository) Create(ctx context.Context, ci *models.SSICredentialIssuance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if ci.ID == uuid.Nil {
		ci.ID = uuid.New()
	}
	for _, existing := range r.s.d.credentials {
		if existing.ID == ci.ID || existing.MyOpportunityID == ci.MyOpportunityID {
			return store.ErrDuplicate
		}
	}

	touch(&ci.CreatedAt, &ci.UpdatedAt)
	r.s.d.credentials[ci.ID] = *ci
	return nil
}

func (r *credentialIssuanceRepository) Update(ctx context.Context, ci *models.SSICredentialIssuance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.d.credentials[ci.ID]; !exists {
		return store.ErrNotFound
	}
	touch(nil, &ci.UpdatedAt)
	r.s.d.credentials[ci.ID] = *ci
	return nil
}

func (r *credentialIssuanceRepository) GetByMyOpportunity(ctx context.Context, myOpportunityID uuid.UUID) (*models.SSICredentialIssuance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, ci := range r.s.d.credentials {
		if ci.MyOpportunityID == myOpportunityID {
			return &ci, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *credentialIssuanceRepository) ListForProcessing(ctx context.Context, q store.ProcessingQuery) ([]models.SSICredentialIssuance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.SSICredentialIssuance
	for _, ci := range r.s.d.credentials {
		if processable(ci.Status, ci.RetryCount, ci.UpdatedAt, q) {
			result = append(result, ci)
		}
	}
	sortBy(result, func(a, b models.SSICredentialIssuance) bool { return a.CreatedAt.Before(b.CreatedAt) })
	return limit(result, q.Limit), nil
}

func (r *credentialIssuanceRepository) Claim(ctx context.Context, ci *models.SSICredentialIssuance) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, exists := r.s.d.credentials[ci.ID]
	if !exists {
		return false, store.ErrNotFound
	}
	if !claim(&ci.Status, &ci.RetryCount, &ci.UpdatedAt, &stored.Status, &stored.RetryCount, &stored.UpdatedAt) {
		return false, nil
	}
	r.s.d.credentials[ci.ID] = stored
	return true, nil
}

func (r *credentialIssuanceRepository) ListByUser(ctx context.Context, userID uuid.UUID, status *models.ProcessingStatus) ([]models.SSICredentialIssuance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var result []models.SSICredentialIssuance
	for _, ci := range r.s.d.credentials {
		if ci.UserID != userID || (status != nil && ci.Status != *status) {
			continue
		}
		result = append(result, ci)
	}
	sortBy(result, func(a, b models.SSICredentialIssuance) bool { return a.CreatedAt.After(b.CreatedAt) })
	return result, nil
}

type blobRepository struct {
	s *state
}

func (r *blobRepository) Create(ctx context.Context, blob *models.BlobObject) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if blob.ID == uuid.Nil {
		blob.ID = uuid.New()
	}
	for _, existing := range r.s.d.blobs {
		if existing.ID == blob.ID || existing.Key == blob.Key {
			return store.ErrDuplicate
		}
	}

	touch(&blob.CreatedAt, nil)
	r.s.d.blobs[blob.ID] = *blob
	return nil
}

func (r *blobRepository) Get(ctx context.Context, id uuid.UUID) (*models.BlobObject, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	blob, exists := r.s.d.blobs[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &blob, nil
}

func (r *blobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.d.blobs[id]; !exists {
		return store.ErrNotFound
	}
	delete(r.s.d.blobs, id)
	return nil
}

type lookupRepository struct {
	s *state
}

// listAll copies one lookup table under the read lock.
func listAll[T any](r *lookupRepository, pick func(*data) []T) []T {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := pick(r.s.d)
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func (r *lookupRepository) Categories(ctx context.Context) ([]models.OpportunityCategory, error) {
	return listAll(r, func(d *data) []models.OpportunityCategory { return d.categories }), nil
}

func (r *lookupRepository) OpportunityTypes(ctx context.Context) ([]models.OpportunityType, error) {
	return listAll(r, func(d *data) []models.OpportunityType { return d.opportunityTypes }), nil
}

func (r *lookupRepository) VerificationTypes(ctx context.Context) ([]models.VerificationTypeLookup, error) {
	return listAll(r, func(d *data) []models.VerificationTypeLookup { return d.verificationTypes }), nil
}

func (r *lookupRepository) SchemaEntities(ctx context.Context) ([]models.SSISchemaEntity, error) {
	return listAll(r, func(d *data) []models.SSISchemaEntity { return d.schemaEntities }), nil
}
