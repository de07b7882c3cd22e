package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the ledger uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresLedger implements Ledger on a shared Postgres database, for
// deployments where concurrent pipeline instances on separate hosts must
// coordinate through one external ledger.
type PostgresLedger struct {
	pool Pool
}

// NewPostgres connects to the ledger database.
func NewPostgres(ctx context.Context, connString string) (*PostgresLedger, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: parse postgres config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ledger: ping postgres")
	}
	return &PostgresLedger{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests.
func NewPostgresFromPool(pool Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS invoice_ledger (
	fingerprint  TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	record_id    TEXT,
	reserved_at  TIMESTAMPTZ NOT NULL,
	committed_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_invoice_ledger_state ON invoice_ledger(state);
`

func (l *PostgresLedger) Migrate(ctx context.Context) error {
	_, err := l.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "ledger: migrate postgres")
}

func (l *PostgresLedger) Close() error {
	l.pool.Close()
	return nil
}

func (l *PostgresLedger) Reserve(ctx context.Context, fingerprint string) (bool, error) {
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO invoice_ledger (fingerprint, state, reserved_at) VALUES ($1, $2, $3)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		fingerprint, string(StateInFlight), time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "ledger: reserve %s", fingerprint)
	}
	return tag.RowsAffected() == 1, nil
}

func (l *PostgresLedger) Commit(ctx context.Context, fingerprint, recordID string) error {
	tag, err := l.pool.Exec(ctx,
		`UPDATE invoice_ledger SET state = $1, record_id = $2, committed_at = $3
		 WHERE fingerprint = $4 AND state = $5`,
		string(StateCommitted), recordID, time.Now().UTC(), fingerprint, string(StateInFlight),
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: commit %s", fingerprint)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ledger: commit %s: no in-flight reservation", fingerprint)
	}
	return nil
}

func (l *PostgresLedger) Release(ctx context.Context, fingerprint string) error {
	_, err := l.pool.Exec(ctx,
		`DELETE FROM invoice_ledger WHERE fingerprint = $1 AND state = $2`,
		fingerprint, string(StateInFlight),
	)
	return eris.Wrapf(err, "ledger: release %s", fingerprint)
}

func (l *PostgresLedger) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	row := l.pool.QueryRow(ctx,
		`SELECT fingerprint, state, record_id, reserved_at, committed_at
		 FROM invoice_ledger WHERE fingerprint = $1`,
		fingerprint,
	)

	var e Entry
	var recordID *string
	err := row.Scan(&e.Fingerprint, &e.State, &recordID, &e.ReservedAt, &e.CommittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: get %s", fingerprint)
	}
	if recordID != nil {
		e.RecordID = *recordID
	}
	return &e, nil
}
