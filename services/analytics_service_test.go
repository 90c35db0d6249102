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

func TestOrganizationSummary(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	org := e.org(t, "Green Youth")
	trees := e.opportunity(t, org.ID, nil)
	beach := e.opportunity(t, org.ID, func(r *OpportunityRequest) {
		r.Title = "Clean the beach"
		r.ZltoReward = ptr(5.0)
		r.ZltoRewardPool = nil
	})

	var youths []*models.User
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		u := e.user(t, email)
		require.NoError(t, e.myOpps.PerformActionViewed(ctx, u.ID, trees.ID))
		youths = append(youths, u)
	}
	require.NoError(t, e.myOpps.PerformActionViewed(ctx, youths[0].ID, beach.ID))
	require.NoError(t, e.myOpps.PerformActionSaved(ctx, youths[0].ID, trees.ID))

	for _, u := range youths[:2] {
		e.sendForVerification(t, u.ID, trees.ID)
		e.verify(t, u.ID, trees.ID, models.VerificationStatusCompleted)
	}
	e.sendForVerification(t, youths[2].ID, trees.ID)
	e.sendForVerification(t, youths[0].ID, beach.ID)
	e.verify(t, youths[0].ID, beach.ID, models.VerificationStatusCompleted)

	summary, err := e.analytics.OrganizationSummary(ctx, e.admin, OrganizationAnalyticsFilter{OrganizationID: org.ID})
	require.NoError(t, err)
	assert.Equal(t, OpportunityCounts{Total: 2, Active: 2}, summary.Opportunities)
	assert.Equal(t, EngagementCounts{Viewed: 4, Saved: 1, Pending: 1, Completed: 3, ConversionRatio: 75}, summary.Engagement)
	assert.Equal(t, 25.0, summary.ZltoRewarded)

	require.Len(t, summary.TopCompleted, 2)
	assert.Equal(t, OpportunityCompletions{OpportunityID: trees.ID, Title: trees.Title, Completed: 2}, summary.TopCompleted[0])
	assert.Equal(t, beach.ID, summary.TopCompleted[1].OpportunityID)

	var viewed, completed int
	for _, w := range summary.Weekly {
		assert.Equal(t, time.Monday, w.WeekStart.Weekday())
		viewed += w.Viewed
		completed += w.Completed
	}
	assert.Equal(t, 4, viewed)
	assert.Equal(t, 3, completed)

	summary, err = e.analytics.OrganizationSummary(ctx, e.admin, OrganizationAnalyticsFilter{
		OrganizationID: org.ID,
		OpportunityIDs: []uuid.UUID{beach.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Opportunities.Total)
	assert.Equal(t, 1, summary.Engagement.Completed)
	assert.Equal(t, 5.0, summary.ZltoRewarded)

	tomorrow := time.Now().Add(24 * time.Hour)
	summary, err = e.analytics.OrganizationSummary(ctx, e.admin, OrganizationAnalyticsFilter{OrganizationID: org.ID, StartDate: &tomorrow})
	require.NoError(t, err)
	assert.Zero(t, summary.Engagement)
	assert.NotNil(t, summary.Weekly)
	assert.Empty(t, summary.TopCompleted)

	yesterday := time.Now().Add(-24 * time.Hour)
	_, err = e.analytics.OrganizationSummary(ctx, e.admin, OrganizationAnalyticsFilter{OrganizationID: org.ID, StartDate: &tomorrow, EndDate: &yesterday})
	assert.True(t, errs.IsValidation(err))

	outsider := e.user(t, "outsider@example.com")
	_, err = e.analytics.OrganizationSummary(ctx, e.identity(outsider, auth.RoleOrganisationAdmin), OrganizationAnalyticsFilter{OrganizationID: org.ID})
	assert.ErrorIs(t, err, errs.ErrForbidden)

	youth, err := e.analytics.YouthSummary(ctx, youths[0].ID)
	require.NoError(t, err)
	assert.Equal(t, YouthSummary{Saved: 1, Completed: 2, ZltoRewarded: 15}, *youth)
}

func TestWeekStart(t *testing.T) {
	monday := time.Date(2024, 5, 13, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   time.Time
	}{
		{"monday", monday},
		{"wednesday", time.Date(2024, 5, 15, 13, 30, 0, 0, time.UTC)},
		{"sunday night", time.Date(2024, 5, 19, 23, 59, 0, 0, time.UTC)},
		{"other zone", time.Date(2024, 5, 20, 1, 0, 0, 0, time.FixedZone("SAST", 2*60*60))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, monday, weekStart(tt.in))
		})
	}
}
