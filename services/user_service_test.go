package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yoma-api/errs"
	"yoma-api/models"
)

func TestUpsertUser(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	user, created, err := e.users.Upsert(ctx, UserRequest{Email: " Youth@Example.com ", FirstName: "Thandi", Surname: "Mokoena"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "youth@example.com", user.Email)
	assert.Equal(t, "Thandi Mokoena", user.DisplayName)
	assert.NotNil(t, user.DateLastLogin)

	wc, err := e.store.WalletCreations().GetByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ProcessingStatusPending, wc.Status)

	again, created, err := e.users.Upsert(ctx, UserRequest{Email: "\tYOUTH@example.com  ", CountryCode: "za"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Thandi", again.FirstName)
	assert.Equal(t, "ZA", again.CountryCode)

	found, err := e.users.GetByEmail(ctx, "  Youth@EXAMPLE.com ")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
}

func TestUpsertUserValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	future := time.Now().Add(48 * time.Hour)

	tests := []struct {
		name string
		req  UserRequest
	}{
		{"missing email", UserRequest{FirstName: "Thandi"}},
		{"invalid email", UserRequest{Email: "not-an-email"}},
		{"invalid phone", UserRequest{Email: "a@example.com", PhoneNumber: "0821234567"}},
		{"future birth date", UserRequest{Email: "a@example.com", DateOfBirth: &future}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.users.Upsert(ctx, tt.req)
			assert.True(t, errs.IsValidation(err), "got %v", err)
		})
	}
}

func TestUpdateProfileAndSearch(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.user(t, "youth@example.com")

	_, err := e.users.UpdateProfile(ctx, user.ID, UserProfileRequest{FirstName: " ", Surname: "Mokoena"})
	assert.True(t, errs.IsValidation(err))

	updated, err := e.users.UpdateProfile(ctx, user.ID, UserProfileRequest{FirstName: "Lerato", Surname: "Dlamini", PhoneNumber: "+27821234567"})
	require.NoError(t, err)
	assert.Equal(t, "Lerato Dlamini", updated.DisplayName)

	got, err := e.users.GetByEmail(ctx, "YOUTH@example.com")
	require.NoError(t, err)
	assert.Equal(t, "+27821234567", got.PhoneNumber)

	res, err := e.users.Search(ctx, UserSearchFilter{ValueContains: "youth"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.TotalCount)

	_, err = e.users.Get(ctx, updated.ID)
	require.NoError(t, err)
}
