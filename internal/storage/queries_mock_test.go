package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetledger/internal/core"
)

func TestWithTx_RollbackWithMock(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO cash_flows").
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = repo.WithTx(context.Background(), func(q *Queries) error {
		if _, err := q.InsertCashFlow(context.Background(), core.CashFlow{
			UserID: 1, Type: core.Income, Amount: core.Cents(100), OccurredAt: time.Now(), AccountID: 1,
		}); err != nil {
			return err
		}
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_CommitError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	err = repo.WithTx(context.Background(), func(q *Queries) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvanceSubscriptionCursor_NoRowsMeansStale(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	q := New(db)
	next := time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE subscriptions SET next_post_at").
		WithArgs(formatTime(next), sqlmock.AnyArg(), int64(7), int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := q.AdvanceSubscriptionCursor(context.Background(), 7, next, 3, time.Now())

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetAccount_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	q := New(db)

	mock.ExpectQuery("SELECT (.+) FROM accounts WHERE id = \\? AND owner_user_id = \\?").
		WithArgs(int64(42), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_user_id", "name", "type", "created_at"}))

	_, err = q.GetAccount(context.Background(), 1, 42)

	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
