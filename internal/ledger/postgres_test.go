package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockLedger(t *testing.T) (pgxmock.PgxPoolIface, *PostgresLedger) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresFromPool(mock)
}

func TestPostgres_ReserveWins(t *testing.T) {
	mock, l := newMockLedger(t)

	mock.ExpectExec("INSERT INTO invoice_ledger").
		WithArgs("fp-1", string(StateInFlight), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ok, err := l.Reserve(context.Background(), "fp-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ReserveLoses(t *testing.T) {
	mock, l := newMockLedger(t)

	mock.ExpectExec("INSERT INTO invoice_ledger").
		WithArgs("fp-1", string(StateInFlight), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	ok, err := l.Reserve(context.Background(), "fp-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Commit(t *testing.T) {
	mock, l := newMockLedger(t)

	mock.ExpectExec("UPDATE invoice_ledger").
		WithArgs(string(StateCommitted), "rec-42", pgxmock.AnyArg(), "fp-1", string(StateInFlight)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, l.Commit(context.Background(), "fp-1", "rec-42"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CommitWithoutReservation(t *testing.T) {
	mock, l := newMockLedger(t)

	mock.ExpectExec("UPDATE invoice_ledger").
		WithArgs(string(StateCommitted), "rec-42", pgxmock.AnyArg(), "fp-1", string(StateInFlight)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := l.Commit(context.Background(), "fp-1", "rec-42")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Release(t *testing.T) {
	mock, l := newMockLedger(t)

	mock.ExpectExec("DELETE FROM invoice_ledger").
		WithArgs("fp-1", string(StateInFlight)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, l.Release(context.Background(), "fp-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Get(t *testing.T) {
	mock, l := newMockLedger(t)

	reserved := time.Now().UTC()
	committed := reserved.Add(time.Second)
	recordID := "rec-7"
	mock.ExpectQuery("SELECT fingerprint, state, record_id").
		WithArgs("fp-1").
		WillReturnRows(pgxmock.NewRows([]string{"fingerprint", "state", "record_id", "reserved_at", "committed_at"}).
			AddRow("fp-1", string(StateCommitted), &recordID, reserved, &committed))

	entry, err := l.Get(context.Background(), "fp-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, StateCommitted, entry.State)
	assert.Equal(t, "rec-7", entry.RecordID)
	require.NotNil(t, entry.CommittedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetAbsent(t *testing.T) {
	mock, l := newMockLedger(t)

	mock.ExpectQuery("SELECT fingerprint, state, record_id").
		WithArgs("fp-x").
		WillReturnRows(pgxmock.NewRows([]string{"fingerprint", "state", "record_id", "reserved_at", "committed_at"}))

	entry, err := l.Get(context.Background(), "fp-x")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}
