package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoma-api/auth"
	"yoma-api/errs"
	"yoma-api/models"
	"yoma-api/store"
)

func TestPerformActionViewedAndSaved(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, nil)
	youth := e.user(t, "youth@example.com")

	require.NoError(t, e.myOpps.PerformActionViewed(ctx, youth.ID, opp.ID))
	require.NoError(t, e.myOpps.PerformActionViewed(ctx, youth.ID, opp.ID))

	viewed := models.ActionViewed
	res, err := e.myOpps.Search(ctx, MyOpportunitySearchFilter{UserID: &youth.ID, Action: &viewed})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalCount)

	require.NoError(t, e.myOpps.PerformActionSaved(ctx, youth.ID, opp.ID))
	require.NoError(t, e.myOpps.PerformActionSaved(ctx, youth.ID, opp.ID))
	saved := models.ActionSaved
	res, err = e.myOpps.Search(ctx, MyOpportunitySearchFilter{UserID: &youth.ID, Action: &saved})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalCount)

	require.NoError(t, e.myOpps.PerformActionSavedRemove(ctx, youth.ID, opp.ID))
	require.NoError(t, e.myOpps.PerformActionSavedRemove(ctx, youth.ID, opp.ID))
	res, err = e.myOpps.Search(ctx, MyOpportunitySearchFilter{UserID: &youth.ID, Action: &saved})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
}

// racingStore fails the first MyOpportunity insert as if a concurrent
// request had inserted the same row.
type racingStore struct {
	store.Store
	inserts *int
}

func (s racingStore) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	return s.Store.Transaction(ctx, func(tx store.Store) error {
		return fn(racingStore{Store: tx, inserts: s.inserts})
	})
}

func (s racingStore) MyOpportunities() store.MyOpportunityRepository {
	return racingRepository{MyOpportunityRepository: s.Store.MyOpportunities(), inserts: s.inserts}
}

type racingRepository struct {
	store.MyOpportunityRepository
	inserts *int
}

func (r racingRepository) Create(ctx context.Context, item *models.MyOpportunity) error {
	*r.inserts++
	if *r.inserts == 1 {
		return fmt.Errorf("failed to create my opportunity: %w", store.ErrDuplicate)
	}
	return r.MyOpportunityRepository.Create(ctx, item)
}

func TestPerformActionRetriesLostInsertRace(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, nil)
	youth := e.user(t, "youth@example.com")

	for _, action := range []models.Action{models.ActionViewed, models.ActionSaved} {
		t.Run(string(action), func(t *testing.T) {
			inserts := 0
			myOpps := NewMyOpportunityService(racingStore{Store: e.store, inserts: &inserts}, e.blobs, e.orgs, e.opportunities, e.rewards, e.credentials)

			perform := myOpps.PerformActionViewed
			if action == models.ActionSaved {
				perform = myOpps.PerformActionSaved
			}
			require.NoError(t, perform(ctx, youth.ID, opp.ID))
			assert.Equal(t, 2, inserts)

			res, err := e.myOpps.Search(ctx, MyOpportunitySearchFilter{UserID: &youth.ID, Action: &action})
			require.NoError(t, err)
			assert.EqualValues(t, 1, res.TotalCount)
		})
	}
}

func TestPerformActionRequiresPublished(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, func(r *OpportunityRequest) { r.PostAsActive = false })
	youth := e.user(t, "youth@example.com")

	err := e.myOpps.PerformActionViewed(ctx, youth.ID, opp.ID)
	assert.True(t, errs.IsValidation(err))

	_, err = e.myOpps.PerformActionSendForVerification(ctx, youth.ID, opp.ID, verificationRequest())
	assert.True(t, errs.IsValidation(err))

	err = e.myOpps.PerformActionViewed(ctx, youth.ID, uuid.New())
	assert.True(t, errs.IsNotFound(err))
}

func TestVerificationWorkflow(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, nil)
	youth := e.user(t, "youth@example.com")

	state, err := e.myOpps.GetVerificationStatus(ctx, youth.ID, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, "None", state.Status)

	item := e.sendForVerification(t, youth.ID, opp.ID)
	assert.Equal(t, models.VerificationStatusPending, *item.VerificationStatus)
	require.Len(t, item.Verifications, 2)
	assert.Equal(t, 1, e.blobClient.Len())

	_, err = e.myOpps.PerformActionSendForVerification(ctx, youth.ID, opp.ID, verificationRequest())
	require.ErrorIs(t, err, errs.ErrConflict)
	assert.Contains(t, err.Error(), "already pending")

	e.verify(t, youth.ID, opp.ID, models.VerificationStatusCompleted)

	completed, err := e.myOpps.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VerificationStatusCompleted, *completed.VerificationStatus)
	assert.NotNil(t, completed.DateCompleted)
	assert.Equal(t, 10.0, *completed.ZltoReward)

	rt, err := e.store.RewardTransactions().GetByMyOpportunity(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, rt.Amount)
	assert.Equal(t, models.ProcessingStatusPending, rt.Status)

	ci, err := e.store.CredentialIssuances().GetByMyOpportunity(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Opportunity", ci.SchemaName)

	updated, err := e.opportunities.Get(ctx, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.ParticipantCount)
	assert.Equal(t, 10.0, *updated.ZltoRewardCumulative)

	// Completed is final.
	for _, next := range []models.VerificationStatus{models.VerificationStatusCompleted, models.VerificationStatusRejected} {
		err := e.myOpps.UpdateVerificationStatus(ctx, e.admin, VerificationStatusRequest{UserID: youth.ID, OpportunityID: opp.ID, Status: next})
		assert.True(t, errs.IsValidation(err), "status %s", next)
	}
	_, err = e.myOpps.PerformActionSendForVerification(ctx, youth.ID, opp.ID, verificationRequest())
	require.ErrorIs(t, err, errs.ErrConflict)
	assert.Contains(t, err.Error(), "already been completed")

	txs, err := e.rewards.ListTransactions(ctx, youth.ID, nil)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestVerificationStatusRequestOnlyAcceptsFinalStates(t *testing.T) {
	e := newTestEnv(t)
	err := e.myOpps.UpdateVerificationStatus(context.Background(), e.admin, VerificationStatusRequest{
		UserID:        uuid.New(),
		OpportunityID: uuid.New(),
		Status:        models.VerificationStatusPending,
	})
	assert.True(t, errs.IsValidation(err))
}

func TestRejectAndResubmit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, nil)
	youth := e.user(t, "youth@example.com")

	first := e.sendForVerification(t, youth.ID, opp.ID)
	oldFile := first.FileIDs()[0]

	e.verify(t, youth.ID, opp.ID, models.VerificationStatusRejected)
	state, err := e.myOpps.GetVerificationStatus(ctx, youth.ID, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Rejected", state.Status)
	assert.Equal(t, "reviewed", state.Comment)

	second := e.sendForVerification(t, youth.ID, opp.ID)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.VerificationStatusPending, *second.VerificationStatus)
	assert.Empty(t, second.CommentVerification)

	_, err = e.store.Blobs().Get(ctx, oldFile)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 1, e.blobClient.Len())

	_, err = e.store.RewardTransactions().GetByMyOpportunity(ctx, first.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSendForVerificationValidatesItems(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, nil)
	youth := e.user(t, "youth@example.com")

	tests := []struct {
		name   string
		mutate func(*VerificationRequest)
	}{
		{"missing location", func(r *VerificationRequest) { r.Items = r.Items[:1] }},
		{"missing file", func(r *VerificationRequest) { r.Items[0].File = nil }},
		{"unsupported type", func(r *VerificationRequest) {
			r.Items = append(r.Items, VerificationItemRequest{Type: models.VerificationTypeVoiceNote, File: picture()})
		}},
		{"latitude out of range", func(r *VerificationRequest) { r.Items[1].Geometry.Coordinates = [][]float64{{18, -120}} }},
		{"end before start", func(r *VerificationRequest) { r.DateEnd, r.DateStart = r.DateStart, r.DateEnd }},
		{"file type not allowed", func(r *VerificationRequest) { r.Items[0].File.ContentType = "application/zip" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := verificationRequest()
			tt.mutate(&req)
			_, err := e.myOpps.PerformActionSendForVerification(ctx, youth.ID, opp.ID, req)
			assert.True(t, errs.IsValidation(err), "got %v", err)
			assert.Zero(t, e.blobClient.Len())
		})
	}
}

func TestSendForVerificationRequiresManualVerification(t *testing.T) {
	e := newTestEnv(t)
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, func(r *OpportunityRequest) {
		r.VerificationEnabled = false
		r.VerificationMethod = nil
		r.VerificationTypes = nil
	})
	youth := e.user(t, "youth@example.com")

	_, err := e.myOpps.PerformActionSendForVerification(context.Background(), youth.ID, opp.ID, verificationRequest())
	assert.True(t, errs.IsValidation(err))
}

func TestRewardPoolIsNeverExceeded(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, nil)

	var rewards []float64
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"} {
		youth := e.user(t, email)
		item := e.sendForVerification(t, youth.ID, opp.ID)
		e.verify(t, youth.ID, opp.ID, models.VerificationStatusCompleted)

		completed, err := e.myOpps.Get(ctx, item.ID)
		require.NoError(t, err)
		rewards = append(rewards, deref(completed.ZltoReward))
	}
	assert.Equal(t, []float64{10, 10, 5, 0}, rewards)

	updated, err := e.opportunities.Get(ctx, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, *updated.ZltoRewardCumulative)
	assert.Equal(t, 4, updated.ParticipantCount)

	_, err = e.wallets.ProcessWalletCreations(ctx)
	require.NoError(t, err)
	rows, err := e.store.RewardTransactions().ListForProcessing(ctx, store.ProcessingQuery{MaxRetries: 5})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestConcurrentCompletionsShareThePool(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, nil)

	var users []uuid.UUID
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"} {
		youth := e.user(t, email)
		e.sendForVerification(t, youth.ID, opp.ID)
		users = append(users, youth.ID)
	}

	// Every request is reviewed twice at the same time.
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed int
	)
	for _, userID := range append(users, users...) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.myOpps.UpdateVerificationStatus(ctx, e.admin, VerificationStatusRequest{
				UserID:        userID,
				OpportunityID: opp.ID,
				Status:        models.VerificationStatusCompleted,
			})
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, len(users), failed, "a request is completed once")

	updated, err := e.opportunities.Get(ctx, opp.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.ParticipantCount)
	assert.Equal(t, 25.0, *updated.ZltoRewardCumulative)

	var total float64
	for _, userID := range users {
		items, err := e.rewards.ListTransactions(ctx, userID, nil)
		require.NoError(t, err)
		for _, item := range items {
			total += item.Amount
		}
	}
	assert.Equal(t, 25.0, total)
}

func TestParticipantLimit(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, func(r *OpportunityRequest) { r.ParticipantLimit = ptr(1) })

	first := e.user(t, "a@example.com")
	second := e.user(t, "b@example.com")
	e.sendForVerification(t, first.ID, opp.ID)
	e.sendForVerification(t, second.ID, opp.ID)

	e.verify(t, first.ID, opp.ID, models.VerificationStatusCompleted)
	err := e.myOpps.UpdateVerificationStatus(ctx, e.admin, VerificationStatusRequest{
		UserID: second.ID, OpportunityID: opp.ID, Status: models.VerificationStatusCompleted,
	})
	require.True(t, errs.IsValidation(err))
	assert.Contains(t, err.Error(), "participant limit")

	third := e.user(t, "c@example.com")
	_, err = e.myOpps.PerformActionSendForVerification(ctx, third.ID, opp.ID, verificationRequest())
	assert.True(t, errs.IsValidation(err))
}

func TestUpdateVerificationStatusBulkIsAllOrNothing(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, nil)
	a := e.user(t, "a@example.com")
	b := e.user(t, "b@example.com")
	e.sendForVerification(t, a.ID, opp.ID)
	e.sendForVerification(t, b.ID, opp.ID)

	err := e.myOpps.UpdateVerificationStatusBulk(ctx, e.admin, VerificationStatusBulkRequest{Items: []VerificationStatusRequest{
		{UserID: a.ID, OpportunityID: opp.ID, Status: models.VerificationStatusCompleted},
		{UserID: b.ID, OpportunityID: opp.ID, Status: models.VerificationStatusCompleted},
		{UserID: uuid.New(), OpportunityID: opp.ID, Status: models.VerificationStatusCompleted},
	}})
	require.True(t, errs.IsNotFound(err))

	for _, u := range []uuid.UUID{a.ID, b.ID} {
		state, err := e.myOpps.GetVerificationStatus(ctx, u, opp.ID)
		require.NoError(t, err)
		assert.Equal(t, "Pending", state.Status)
	}
	updated, err := e.opportunities.Get(ctx, opp.ID)
	require.NoError(t, err)
	assert.Zero(t, updated.ParticipantCount)

	err = e.myOpps.UpdateVerificationStatusBulk(ctx, e.admin, VerificationStatusBulkRequest{Items: []VerificationStatusRequest{
		{UserID: a.ID, OpportunityID: opp.ID, Status: models.VerificationStatusCompleted},
		{UserID: b.ID, OpportunityID: opp.ID, Status: models.VerificationStatusRejected, Comment: "blurry picture"},
	}})
	require.NoError(t, err)

	pending := []models.VerificationStatus{models.VerificationStatusPending}
	res, err := e.myOpps.Search(ctx, MyOpportunitySearchFilter{OrganizationID: &org.ID, VerificationStatuses: pending})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
}

func TestUpdateVerificationStatusRequiresOrganisationAdmin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	other := e.org(t, "Blue Ocean")
	opp := e.opportunity(t, org.ID, nil)
	youth := e.user(t, "youth@example.com")
	e.sendForVerification(t, youth.ID, opp.ID)

	outsider := e.user(t, "outsider@example.com")
	require.NoError(t, e.orgs.AssignAdmins(ctx, e.admin, other.ID, []string{outsider.Email}))

	req := VerificationStatusRequest{UserID: youth.ID, OpportunityID: opp.ID, Status: models.VerificationStatusCompleted}
	err := e.myOpps.UpdateVerificationStatus(ctx, e.identity(outsider, auth.RoleOrganisationAdmin), req)
	assert.True(t, errors.Is(err, errs.ErrForbidden))

	insider := e.user(t, "insider@example.com")
	require.NoError(t, e.orgs.AssignAdmins(ctx, e.admin, org.ID, []string{insider.Email}))
	require.NoError(t, e.myOpps.UpdateVerificationStatus(ctx, e.identity(insider, auth.RoleOrganisationAdmin), req))
}
