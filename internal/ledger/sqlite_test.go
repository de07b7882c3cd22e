package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := NewSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	require.NoError(t, l.Migrate(context.Background()))
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestSQLite_ReserveCommitGet(t *testing.T) {
	ctx := context.Background()
	l := newTestSQLite(t)

	ok, err := l.Reserve(ctx, "fp-1")
	require.NoError(t, err)
	assert.True(t, ok)

	entry, err := l.Get(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, StateInFlight, entry.State)
	assert.Empty(t, entry.RecordID)
	assert.Nil(t, entry.CommittedAt)

	require.NoError(t, l.Commit(ctx, "fp-1", "rec-42"))

	entry, err = l.Get(ctx, "fp-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, StateCommitted, entry.State)
	assert.Equal(t, "rec-42", entry.RecordID)
	assert.NotNil(t, entry.CommittedAt)
}

func TestSQLite_ReserveDuplicate(t *testing.T) {
	ctx := context.Background()
	l := newTestSQLite(t)

	ok, err := l.Reserve(ctx, "fp-dup")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Reserve(ctx, "fp-dup")
	require.NoError(t, err)
	assert.False(t, ok, "second reservation of the same fingerprint must lose")
}

func TestSQLite_ReserveAfterCommitStaysClosed(t *testing.T) {
	ctx := context.Background()
	l := newTestSQLite(t)

	ok, err := l.Reserve(ctx, "fp-c")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l.Commit(ctx, "fp-c", "rec-1"))

	ok, err = l.Reserve(ctx, "fp-c")
	require.NoError(t, err)
	assert.False(t, ok, "committed fingerprints are permanently claimed")
}

func TestSQLite_ReleaseReopensFingerprint(t *testing.T) {
	ctx := context.Background()
	l := newTestSQLite(t)

	ok, err := l.Reserve(ctx, "fp-r")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, l.Release(ctx, "fp-r"))

	ok, err = l.Reserve(ctx, "fp-r")
	require.NoError(t, err)
	assert.True(t, ok, "released fingerprint is reservable again")
}

func TestSQLite_ReleaseLeavesCommitted(t *testing.T) {
	ctx := context.Background()
	l := newTestSQLite(t)

	ok, err := l.Reserve(ctx, "fp-k")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, l.Commit(ctx, "fp-k", "rec-9"))

	require.NoError(t, l.Release(ctx, "fp-k"))

	entry, err := l.Get(ctx, "fp-k")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, StateCommitted, entry.State)
}

func TestSQLite_CommitWithoutReservation(t *testing.T) {
	ctx := context.Background()
	l := newTestSQLite(t)

	err := l.Commit(ctx, "fp-missing", "rec-1")
	assert.Error(t, err)
}

func TestSQLite_GetAbsent(t *testing.T) {
	l := newTestSQLite(t)

	entry, err := l.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestSQLite_ConcurrentReserveSingleWinner(t *testing.T) {
	ctx := context.Background()
	l := newTestSQLite(t)

	const racers = 20
	var wins atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := l.Reserve(ctx, "fp-race")
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), wins.Load(), "exactly one racer wins the reservation")
}
