package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-pipeline/internal/audit"
	"github.com/sells-group/invoice-pipeline/internal/ledger"
	"github.com/sells-group/invoice-pipeline/internal/master"
	"github.com/sells-group/invoice-pipeline/internal/normalize"
	"github.com/sells-group/invoice-pipeline/internal/pipeline"
	"github.com/sells-group/invoice-pipeline/pkg/docai"
	"github.com/sells-group/invoice-pipeline/pkg/kintone"
)

// pipelineEnv holds the initialized clients, the ledger, and the pipeline
// shared by the process/batch/serve commands.
type pipelineEnv struct {
	Ledger   ledger.Ledger
	Pipeline *pipeline.Pipeline
	Records  kintone.Client
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Ledger != nil {
		_ = pe.Ledger.Close()
	}
}

// initPipeline opens the ledger, loads the company master and field mapping,
// builds both API clients, and assembles the Pipeline. Callers should defer
// env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	guard, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		return nil, err
	}

	if err := guard.Migrate(ctx); err != nil {
		_ = guard.Close()
		return nil, eris.Wrap(err, "migrate ledger")
	}

	m, err := master.Load(cfg.Pipeline.CompanyMasterPath)
	if err != nil {
		_ = guard.Close()
		return nil, err
	}
	zap.L().Info("company master loaded",
		zap.String("path", cfg.Pipeline.CompanyMasterPath),
		zap.Int("entries", m.Len()),
	)

	mapping, err := pipeline.LoadFieldMapping(cfg.RecordStore.FieldMappingPath)
	if err != nil {
		_ = guard.Close()
		return nil, err
	}

	auditor, err := audit.NewDirWriter(cfg.Pipeline.OutputLocation)
	if err != nil {
		_ = guard.Close()
		return nil, err
	}

	extractor := docai.NewClient(docai.Config{
		Endpoint:    cfg.Extraction.Endpoint,
		Project:     cfg.Extraction.Project,
		Location:    cfg.Extraction.Location,
		ProcessorID: cfg.Extraction.ProcessorID,
		Token:       cfg.Extraction.Token,
		Timeout:     time.Duration(cfg.Extraction.TimeoutSecs) * time.Second,
	})

	records := kintone.NewClient(cfg.RecordStore.Domain, cfg.RecordStore.APIToken,
		kintone.WithRateLimit(cfg.RecordStore.RateLimit))

	p := pipeline.New(
		pipeline.Config{
			AppID:               cfg.RecordStore.AppID,
			FuzzyMatchThreshold: cfg.Pipeline.FuzzyMatchThreshold,
			MaxUpsertRetries:    cfg.Pipeline.MaxUpsertRetries,
		},
		pipeline.NewDirFetcher(cfg.Pipeline.InputLocation),
		extractor,
		normalize.New(cfg.Pipeline.AmountTolerance),
		m,
		guard,
		records,
		mapping,
		auditor,
	)

	return &pipelineEnv{
		Ledger:   guard,
		Pipeline: p,
		Records:  records,
	}, nil
}
