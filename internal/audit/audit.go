// Package audit persists one durable JSON document per processed event. The
// audit trail is unconditional — success, failure, and duplicate all leave a
// record — and is the operator's source of truth for reprocessing decisions.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-pipeline/internal/model"
)

// Writer persists audit records.
type Writer interface {
	Persist(ctx context.Context, rec model.AuditRecord) error
}

// WriteError marks a failed audit write. Losing an audit record removes the
// operator's ability to diagnose or reprocess the event, so the orchestrator
// escalates it instead of absorbing it.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "audit: " + e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }

// DirWriter writes one JSON file per source object into a directory.
type DirWriter struct {
	dir string
}

// NewDirWriter creates the output directory if needed.
func NewDirWriter(dir string) (*DirWriter, error) {
	if dir == "" {
		return nil, eris.New("audit: output location is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "audit: create %s", dir)
	}
	return &DirWriter{dir: dir}, nil
}

// Persist writes the record to <dir>/<source object id>.json, replacing any
// earlier document for the same object. Write-then-rename keeps readers from
// observing partial JSON.
func (w *DirWriter) Persist(_ context.Context, rec model.AuditRecord) error {
	if rec.SourceObjectID == "" {
		return &WriteError{Err: eris.New("record has no source object id")}
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &WriteError{Err: eris.Wrap(err, "marshal record")}
	}

	final := filepath.Join(w.dir, FileName(rec.SourceObjectID))
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &WriteError{Err: eris.Wrapf(err, "write %s", tmp)}
	}
	if err := os.Rename(tmp, final); err != nil {
		return &WriteError{Err: eris.Wrapf(err, "rename %s", final)}
	}
	return nil
}

// FileName maps a source object ID to its audit file name. Path separators
// collapse to underscores so bucket-qualified IDs stay one flat file per
// object; a short digest of the unmodified ID keeps the mapping injective,
// so "a/b.pdf" and "a_b.pdf" never share a file.
func FileName(sourceObjectID string) string {
	sum := sha256.Sum256([]byte(sourceObjectID))
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(sourceObjectID)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return name + "-" + hex.EncodeToString(sum[:4]) + ".json"
}
