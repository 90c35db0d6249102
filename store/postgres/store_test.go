package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"yoma-api/models"
	"yoma-api/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	require.NoError(t, err)
	return New(db), mock
}

func TestUserGetNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))

	_, err := s.Users().Get(context.Background(), id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByEmailLowercases(t *testing.T) {
	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE email = \$1`).
		WithArgs("youth@example.com", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(id.String(), "youth@example.com"))

	user, err := s.Users().GetByEmail(context.Background(), "Youth@Example.com")
	require.NoError(t, err)
	assert.Equal(t, id, user.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserSearchCountsThenPages(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "users" WHERE \(?email ILIKE \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(`SELECT \* FROM "users" WHERE .* ORDER BY email ASC LIMIT \$5 OFFSET \$6`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(uuid.NewString(), "b@example.com"))

	users, total, err := s.Users().Search(context.Background(), store.UserFilter{
		ValueContains: "example",
		Page:          store.Page{Number: 2, Size: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, users, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsAdmin(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "organization_admins" WHERE organization_id = \$1 AND user_id = \$2`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := s.Organizations().IsAdmin(context.Background(), uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetForUpdateLocksRow(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`FROM "opportunities" JOIN organizations .* FOR UPDATE OF "opportunities"$`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err := s.Opportunities().GetForUpdate(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)

	mock.ExpectQuery(`FROM "my_opportunities" .* FOR UPDATE OF "my_opportunities"$`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = s.MyOpportunities().FindForUpdate(ctx, uuid.New(), uuid.New(), models.ActionVerification)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRewardListForProcessingRequiresWallet(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "reward_transactions" WHERE .*updated_at < .*EXISTS \(SELECT 1 FROM "wallet_creations" WHERE wallet_creations.user_id = reward_transactions.user_id AND wallet_creations.status = \$\d+\) ORDER BY created_at ASC LIMIT \$\d+`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow(uuid.NewString(), "Pending"))

	items, err := s.RewardTransactions().ListForProcessing(context.Background(), store.ProcessingQuery{
		MaxRetries:  3,
		Limit:       2,
		StaleBefore: time.Now().Add(-time.Minute),
	})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaim(t *testing.T) {
	tests := []struct {
		name        string
		status      models.ProcessingStatus
		retries     int
		affected    int64
		wantClaimed bool
		wantRetries int
	}{
		{"pending", models.ProcessingStatusPending, 0, 1, true, 0},
		{"stale processing counts a retry", models.ProcessingStatusProcessing, 1, 1, true, 2},
		{"taken by another worker", models.ProcessingStatusPending, 0, 0, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newMockStore(t)
			rt := &models.RewardTransaction{ID: uuid.New(), Status: tt.status, RetryCount: tt.retries}

			mock.ExpectBegin()
			mock.ExpectExec(`UPDATE "reward_transactions" SET "retry_count"=\$1,"status"=\$2,"updated_at"=\$3 WHERE id = \$4 AND status = \$5 AND retry_count = \$6`).
				WithArgs(tt.wantRetries, models.ProcessingStatusProcessing, sqlmock.AnyArg(), rt.ID, tt.status, tt.retries).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))
			mock.ExpectCommit()

			claimed, err := s.RewardTransactions().Claim(context.Background(), rt)
			require.NoError(t, err)
			assert.Equal(t, tt.wantClaimed, claimed)
			if tt.wantClaimed {
				assert.Equal(t, models.ProcessingStatusProcessing, rt.Status)
				assert.Equal(t, tt.wantRetries, rt.RetryCount)
			} else {
				assert.Equal(t, tt.status, rt.Status)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"record not found", gorm.ErrRecordNotFound, store.ErrNotFound},
		{"duplicated key", gorm.ErrDuplicatedKey, store.ErrDuplicate},
		{"unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "idx_users_email"}), store.ErrDuplicate},
		{"foreign key violation", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, store.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}

	other := errors.New("connection reset")
	assert.Equal(t, other, mapError(other))

	serial := mapError(&pgconn.PgError{Code: pgerrcode.SerializationFailure})
	assert.Contains(t, serial.Error(), "retryable")
}
