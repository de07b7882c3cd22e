package master

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-pipeline/internal/model"
	"github.com/sells-group/invoice-pipeline/pkg/kintone"
)

// syncFields are the field codes read from the record store's master app.
// Aliases are one per line in a multi-line text field.
var syncFields = []string{"code", "name", "aliases"}

// Sync rebuilds the company master file from the record store's master app,
// so the roster maintained by staff in the record store is the one vendors
// are matched against. Returns the number of entries written. The master
// itself stays read-only at runtime; refresh is this out-of-band operation.
func Sync(ctx context.Context, client kintone.Client, appID, path string) (int, error) {
	records, err := client.ListRecords(ctx, appID, syncFields)
	if err != nil {
		return 0, eris.Wrap(err, "master: list roster records")
	}

	entries := make([]model.CompanyEntry, 0, len(records))
	for _, rec := range records {
		e := model.CompanyEntry{
			Code: strings.TrimSpace(rec["code"].StringValue()),
			Name: strings.TrimSpace(rec["name"].StringValue()),
		}
		if e.Code == "" || e.Name == "" {
			zap.L().Warn("master: skipping roster record without code or name")
			continue
		}
		for _, line := range strings.Split(rec["aliases"].StringValue(), "\n") {
			if alias := strings.TrimSpace(line); alias != "" {
				e.Aliases = append(e.Aliases, alias)
			}
		}
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return 0, eris.Wrap(err, "master: marshal entries")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return 0, eris.Wrapf(err, "master: write %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return 0, eris.Wrapf(err, "master: rename %s", path)
	}

	zap.L().Info("master: roster synced", zap.Int("entries", len(entries)), zap.String("path", path))
	return len(entries), nil
}
