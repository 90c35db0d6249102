package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoma-api/auth"
	"yoma-api/errs"
	"yoma-api/models"
)

func TestCreateOpportunityValidation(t *testing.T) {
	e := newTestEnv(t)
	org := e.org(t, "Green Youth")

	tests := []struct {
		name   string
		mutate func(*OpportunityRequest)
	}{
		{"missing title", func(r *OpportunityRequest) { r.Title = " " }},
		{"end before start", func(r *OpportunityRequest) { r.DateEnd = ptr(r.DateStart.Add(-time.Hour)) }},
		{"negative reward", func(r *OpportunityRequest) { r.ZltoReward = ptr(-1.0) }},
		{"pool below reward", func(r *OpportunityRequest) { r.ZltoRewardPool = ptr(5.0) }},
		{"manual without types", func(r *OpportunityRequest) { r.VerificationTypes = nil }},
		{"credential without schema", func(r *OpportunityRequest) { r.SSISchemaName = "" }},
		{"unknown type", func(r *OpportunityRequest) { r.Type = "Quest" }},
		{"unknown category", func(r *OpportunityRequest) { r.CategoryIDs = []uuid.UUID{uuid.New()} }},
		{"no categories", func(r *OpportunityRequest) { r.CategoryIDs = nil }},
		{"unknown verification type", func(r *OpportunityRequest) {
			r.VerificationTypes = []OpportunityVerificationTypeRequest{{Type: "Selfie"}}
		}},
		{"duplicate verification type", func(r *OpportunityRequest) {
			r.VerificationTypes = append(r.VerificationTypes, OpportunityVerificationTypeRequest{Type: models.VerificationTypePicture})
		}},
		{"active but ended", func(r *OpportunityRequest) {
			r.DateStart = time.Now().Add(-72 * time.Hour)
			r.DateEnd = ptr(time.Now().Add(-24 * time.Hour))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := opportunityRequest(org.ID)
			tt.mutate(&req)
			_, err := e.opportunities.Create(context.Background(), e.admin, req)
			assert.True(t, errs.IsValidation(err), "got %v", err)
		})
	}
}

func TestCreateOpportunity(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")

	opp := e.opportunity(t, org.ID, func(r *OpportunityRequest) {
		r.Keywords = []string{"trees", " climate ", "trees"}
	})
	assert.Equal(t, models.OpportunityStatusActive, opp.Status)
	assert.Equal(t, "trees,climate", opp.Keywords)
	assert.Equal(t, org.Name, opp.OrganizationName)
	require.Len(t, opp.Categories, 1)
	require.Len(t, opp.VerificationTypes, 2)
	assert.NotEmpty(t, opp.VerificationTypes[0].Description)

	_, err := e.opportunities.Create(ctx, e.admin, opportunityRequest(org.ID))
	assert.ErrorIs(t, err, errs.ErrConflict)

	outsider := e.user(t, "outsider@example.com")
	req := opportunityRequest(org.ID)
	req.Title = "Another"
	_, err = e.opportunities.Create(ctx, e.identity(outsider, auth.RoleOrganisationAdmin), req)
	assert.ErrorIs(t, err, errs.ErrForbidden)

	_, err = e.opportunities.Create(ctx, e.admin, opportunityRequest(uuid.New()))
	assert.True(t, errs.IsNotFound(err))
}

func TestUpdateOpportunity(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	opp := e.opportunity(t, org.ID, nil)

	req := opportunityRequest(org.ID)
	req.Title = "Plant 20 trees"
	req.ZltoReward = ptr(20.0)
	req.ZltoRewardPool = ptr(100.0)
	updated, err := e.opportunities.Update(ctx, e.admin, opp.ID, req)
	require.NoError(t, err)
	assert.Equal(t, "Plant 20 trees", updated.Title)
	assert.Equal(t, 20.0, *updated.ZltoReward)

	other := e.org(t, "Blue Ocean")
	req.OrganizationID = other.ID
	_, err = e.opportunities.Update(ctx, e.admin, opp.ID, req)
	assert.True(t, errs.IsValidation(err))

	// The pool can not shrink below what was already awarded.
	youth := e.user(t, "youth@example.com")
	e.sendForVerification(t, youth.ID, opp.ID)
	e.verify(t, youth.ID, opp.ID, models.VerificationStatusCompleted)

	req = opportunityRequest(org.ID)
	req.Title = "Plant 20 trees"
	req.ZltoReward = ptr(10.0)
	req.ZltoRewardPool = ptr(15.0)
	_, err = e.opportunities.Update(ctx, e.admin, opp.ID, req)
	assert.True(t, errs.IsValidation(err))
}

func TestUpdateOpportunityStatus(t *testing.T) {
	tests := []struct {
		name    string
		active  bool
		path    []models.OpportunityStatus
		wantErr bool
	}{
		{"deactivate", true, []models.OpportunityStatus{models.OpportunityStatusInactive}, false},
		{"activate", false, []models.OpportunityStatus{models.OpportunityStatusActive}, false},
		{"same status", true, []models.OpportunityStatus{models.OpportunityStatusActive}, false},
		{"delete active", true, []models.OpportunityStatus{models.OpportunityStatusDeleted}, false},
		{"delete inactive", false, []models.OpportunityStatus{models.OpportunityStatusDeleted}, false},
		{"expire by hand", true, []models.OpportunityStatus{models.OpportunityStatusExpired}, true},
		{"restore deleted", true, []models.OpportunityStatus{models.OpportunityStatusDeleted, models.OpportunityStatusActive}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			ctx := context.Background()
			org := e.org(t, "Green Youth")
			opp := e.opportunity(t, org.ID, func(r *OpportunityRequest) { r.PostAsActive = tt.active })

			var err error
			for i, status := range tt.path {
				_, err = e.opportunities.UpdateStatus(ctx, e.admin, opp.ID, OpportunityStatusRequest{Status: status})
				if i < len(tt.path)-1 {
					require.NoError(t, err)
				}
			}
			if tt.wantErr {
				assert.True(t, errs.IsValidation(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			got, err := e.opportunities.Get(ctx, opp.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.path[len(tt.path)-1], got.Status)
		})
	}
}

func TestExpireOpportunities(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")

	for i, title := range []string{"One", "Two", "Three"} {
		e.opportunity(t, org.ID, func(r *OpportunityRequest) {
			r.Title = title
			r.PostAsActive = i%2 == 0
			r.DateEnd = ptr(time.Now().Add(24 * time.Hour))
		})
	}
	open := e.opportunity(t, org.ID, func(r *OpportunityRequest) {
		r.Title = "Open ended"
		r.DateEnd = nil
	})

	res, err := e.opportunities.ExpireOpportunities(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)

	e.opportunities.SetClock(func() time.Time { return time.Now().Add(48 * time.Hour) })
	res, err = e.opportunities.ExpireOpportunities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)

	expired, err := e.opportunities.Search(ctx, OpportunitySearchFilter{Statuses: []models.OpportunityStatus{models.OpportunityStatusExpired}})
	require.NoError(t, err)
	assert.EqualValues(t, 3, expired.TotalCount)

	got, err := e.opportunities.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OpportunityStatusActive, got.Status)

	_, err = e.opportunities.UpdateStatus(ctx, e.admin, expired.Items[0].ID, OpportunityStatusRequest{Status: models.OpportunityStatusActive})
	assert.True(t, errs.IsValidation(err))
}

func TestSearchPublishedOpportunities(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	e.opportunity(t, org.ID, func(r *OpportunityRequest) { r.Keywords = []string{"forest"} })
	e.opportunity(t, org.ID, func(r *OpportunityRequest) { r.Title = "Draft"; r.PostAsActive = false })
	e.opportunity(t, org.ID, func(r *OpportunityRequest) { r.Title = "Secret"; r.Hidden = true })
	e.opportunity(t, org.ID, func(r *OpportunityRequest) {
		r.Title = "Later"
		r.DateStart = time.Now().Add(24 * time.Hour)
		r.DateEnd = ptr(time.Now().Add(72 * time.Hour))
	})

	res, err := e.opportunities.Search(ctx, OpportunitySearchFilter{PublishedOnly: true})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.TotalCount)
	assert.Equal(t, "Plant 10 trees", res.Items[0].Title)

	res, err = e.opportunities.Search(ctx, OpportunitySearchFilter{ValueContains: "FOREST"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalCount)

	res, err = e.opportunities.Search(ctx, OpportunitySearchFilter{OrganizationIDs: []uuid.UUID{org.ID}})
	require.NoError(t, err)
	assert.EqualValues(t, 4, res.TotalCount)

	later, err := e.opportunities.Search(ctx, OpportunitySearchFilter{ValueContains: "later"})
	require.NoError(t, err)
	require.Len(t, later.Items, 1)
	_, err = e.opportunities.GetPublished(ctx, later.Items[0].ID)
	assert.True(t, errs.IsNotFound(err), "opportunity starting tomorrow is not published")

	_, err = e.orgs.UpdateStatus(ctx, org.ID, OrganizationStatusRequest{Status: models.OrganizationStatusInactive})
	require.NoError(t, err)
	res, err = e.opportunities.Search(ctx, OpportunitySearchFilter{PublishedOnly: true})
	require.NoError(t, err)
	assert.Zero(t, res.TotalCount)
}

func TestAllocate(t *testing.T) {
	tests := []struct {
		name       string
		reward     *float64
		pool       *float64
		cumulative *float64
		want       float64
		wantTotal  float64
	}{
		{"no reward", nil, nil, nil, 0, 0},
		{"no pool", ptr(10.0), nil, ptr(100.0), 10, 110},
		{"within pool", ptr(10.0), ptr(50.0), ptr(20.0), 10, 30},
		{"partially exhausted", ptr(10.0), ptr(25.0), ptr(20.0), 5, 25},
		{"exhausted", ptr(10.0), ptr(25.0), ptr(25.0), 0, 25},
		{"rounds", ptr(0.333), nil, nil, 0.33, 0.33},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total := allocate(tt.reward, tt.pool, tt.cumulative)
			assert.Equal(t, tt.want, deref(got))
			assert.InDelta(t, tt.wantTotal, deref(total), 0.001)
		})
	}
}
