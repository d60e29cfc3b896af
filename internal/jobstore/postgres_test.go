package jobstore

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezkam/inference-engine/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{db: db}, mock
}

func TestPostgresStore_Create(t *testing.T) {
	store, mock := newMockStore(t)
	job := newTestJob("job-1")

	mock.ExpectExec("INSERT INTO jobs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Create(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateResult_SkipsWhenTerminal(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET result").
		WithArgs([]byte(`{"ok":true}`), sqlmock.AnyArg(), string(domain.JobSucceeded), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateResult(context.Background(), "job-1", []byte(`{"ok":true}`), time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Cancel_Unconditional(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE jobs SET error_type").
		WithArgs("JobCancelled", "Cancelled", sqlmock.AnyArg(), string(domain.JobCancelled), "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Cancel(context.Background(), "job-1", "JobCancelled", "Cancelled", time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
