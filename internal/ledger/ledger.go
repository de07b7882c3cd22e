// Package ledger implements the idempotency guard: the single externally
// shared piece of state that makes redelivered storage events safe. Exactly
// one of any number of racing runs for the same fingerprint wins the
// reservation; only a successful upsert commits it.
package ledger

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-pipeline/internal/config"
)

// EntryState is the lifecycle of one fingerprint in the ledger.
type EntryState string

const (
	// StateInFlight marks a reserved fingerprint whose upsert has not
	// finished. An abandoned in-flight row is released by its owner on
	// failure; a crashed owner leaves it for operator cleanup, which is
	// preferable to double-committing.
	StateInFlight EntryState = "in_flight"

	// StateCommitted marks a fingerprint whose record was created
	// downstream. Committed rows are never released.
	StateCommitted EntryState = "committed"
)

// Entry is one ledger row.
type Entry struct {
	Fingerprint string     `json:"fingerprint"`
	State       EntryState `json:"state"`
	RecordID    string     `json:"record_id,omitempty"`
	ReservedAt  time.Time  `json:"reserved_at"`
	CommittedAt *time.Time `json:"committed_at,omitempty"`
}

// Ledger is the idempotency guard contract. Reserve is an atomic
// compare-and-set: of two concurrent calls with the same fingerprint at most
// one returns true, and the loser must report skipped_duplicate without
// touching the record store.
type Ledger interface {
	// Reserve claims the fingerprint. false means it is already in flight
	// or committed.
	Reserve(ctx context.Context, fingerprint string) (bool, error)

	// Commit records the external record ID. Called only after a
	// successful upsert.
	Commit(ctx context.Context, fingerprint, recordID string) error

	// Release frees a failed reservation so external redelivery can retry
	// the event. Committed entries are left untouched.
	Release(ctx context.Context, fingerprint string) error

	// Get returns the entry for a fingerprint, or nil when absent.
	Get(ctx context.Context, fingerprint string) (*Entry, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the configured ledger backend.
func Open(ctx context.Context, cfg config.LedgerConfig) (Ledger, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("ledger: unknown driver %q", cfg.Driver)
	}
}
