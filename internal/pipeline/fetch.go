package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/invoice-pipeline/internal/model"
)

// Fetcher retrieves the document bytes for a triggering event. The object
// transport (bucket API, mounted volume) stays outside the pipeline; this is
// its boundary.
type Fetcher interface {
	Fetch(ctx context.Context, event model.Event) ([]byte, error)
}

// DirFetcher reads objects from a local directory, with the event's object
// name as the relative path. This backs the CLI commands and tests; bucket
// deployments mount or sync the inbox here.
type DirFetcher struct {
	root string
}

// NewDirFetcher creates a fetcher rooted at dir.
func NewDirFetcher(dir string) *DirFetcher {
	return &DirFetcher{root: dir}
}

func (f *DirFetcher) Fetch(_ context.Context, event model.Event) ([]byte, error) {
	path := filepath.Join(f.root, filepath.FromSlash(event.ObjectName))
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: fetch %s", event.SourceObjectID())
	}
	return data, nil
}
