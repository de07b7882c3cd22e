package main

import (
	"io/fs"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/invoice-pipeline/internal/model"
)

var (
	batchLimit       int
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process every invoice document under the input location",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		root := cfg.Pipeline.InputLocation
		var objects []string
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
				return nil
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			objects = append(objects, filepath.ToSlash(rel))
			return nil
		})
		if err != nil {
			return eris.Wrapf(err, "walk %s", root)
		}

		if batchLimit > 0 && len(objects) > batchLimit {
			objects = objects[:batchLimit]
		}

		concurrency := batchConcurrency
		if concurrency == 0 {
			concurrency = cfg.Pipeline.MaxConcurrent
		}

		zap.L().Info("starting batch",
			zap.Int("documents", len(objects)),
			zap.Int("concurrency", concurrency),
		)
		start := time.Now()

		var done, failed atomic.Int64
		g, ctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)

		for _, object := range objects {
			g.Go(func() error {
				event := model.Event{
					Bucket:      "local",
					ObjectName:  object,
					ContentType: "application/pdf",
				}
				result, err := env.Pipeline.Run(ctx, event)
				if err != nil {
					// Per-document failures are logged, not fatal; the
					// audit record already carries the detail.
					failed.Add(1)
					zap.L().Error("document failed",
						zap.String("object", object),
						zap.Error(err),
					)
					return nil
				}
				done.Add(1)
				zap.L().Info("document processed",
					zap.String("object", object),
					zap.String("state", string(result.State)),
					zap.String("status", upsertStatus(result)),
				)
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("batch complete",
			zap.Int64("processed", done.Load()),
			zap.Int64("failed", failed.Load()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	},
}

func upsertStatus(result *model.Result) string {
	if result.Outcome == nil {
		return ""
	}
	return string(result.Outcome.Status)
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of documents to process (0 = all)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "max concurrent documents (default from config)")
	rootCmd.AddCommand(batchCmd)
}
