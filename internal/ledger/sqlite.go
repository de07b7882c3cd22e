package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteLedger implements Ledger on a local SQLite file. WAL mode plus the
// unique primary key give the insert-if-absent the atomicity Reserve needs.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the ledger database at path.
func NewSQLite(path string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "ledger: exec %s", pragma)
		}
	}
	return &SQLiteLedger{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ledger (
	fingerprint  TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	record_id    TEXT,
	reserved_at  DATETIME NOT NULL,
	committed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_ledger_state ON ledger(state);
`

func (l *SQLiteLedger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "ledger: migrate sqlite")
}

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func (l *SQLiteLedger) Reserve(ctx context.Context, fingerprint string) (bool, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO ledger (fingerprint, state, reserved_at) VALUES (?, ?, ?)
		 ON CONFLICT (fingerprint) DO NOTHING`,
		fingerprint, string(StateInFlight), time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "ledger: reserve %s", fingerprint)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "ledger: reserve rows affected")
	}
	return n == 1, nil
}

func (l *SQLiteLedger) Commit(ctx context.Context, fingerprint, recordID string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE ledger SET state = ?, record_id = ?, committed_at = ? WHERE fingerprint = ? AND state = ?`,
		string(StateCommitted), recordID, time.Now().UTC(), fingerprint, string(StateInFlight),
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: commit %s", fingerprint)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "ledger: commit rows affected")
	}
	if n == 0 {
		return eris.Errorf("ledger: commit %s: no in-flight reservation", fingerprint)
	}
	return nil
}

func (l *SQLiteLedger) Release(ctx context.Context, fingerprint string) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM ledger WHERE fingerprint = ? AND state = ?`,
		fingerprint, string(StateInFlight),
	)
	return eris.Wrapf(err, "ledger: release %s", fingerprint)
}

func (l *SQLiteLedger) Get(ctx context.Context, fingerprint string) (*Entry, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT fingerprint, state, record_id, reserved_at, committed_at FROM ledger WHERE fingerprint = ?`,
		fingerprint,
	)

	var e Entry
	var recordID sql.NullString
	var committedAt sql.NullTime
	err := row.Scan(&e.Fingerprint, &e.State, &recordID, &e.ReservedAt, &committedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "ledger: get %s", fingerprint)
	}
	e.RecordID = recordID.String
	if committedAt.Valid {
		e.CommittedAt = &committedAt.Time
	}
	return &e, nil
}
