// Package pipeline sequences one triggering event through extraction,
// normalization, vendor matching, the idempotency check, the record-store
// upsert, and the audit write. The orchestrator owns error aggregation:
// normalization and matching problems downgrade to warnings, extraction and
// upsert failures are terminal but still audited, and an audit failure is
// never swallowed.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/invoice-pipeline/internal/audit"
	"github.com/sells-group/invoice-pipeline/internal/ledger"
	"github.com/sells-group/invoice-pipeline/internal/master"
	"github.com/sells-group/invoice-pipeline/internal/model"
	"github.com/sells-group/invoice-pipeline/internal/normalize"
	"github.com/sells-group/invoice-pipeline/internal/resilience"
	"github.com/sells-group/invoice-pipeline/pkg/docai"
	"github.com/sells-group/invoice-pipeline/pkg/kintone"
)

// Config holds the orchestrator tunables.
type Config struct {
	// AppID is the record-store app invoices are committed to.
	AppID string

	// FuzzyMatchThreshold is the minimum similarity for a fuzzy vendor
	// match.
	FuzzyMatchThreshold float64

	// MaxUpsertRetries bounds record-store and extraction attempts,
	// including the first try.
	MaxUpsertRetries int
}

// Pipeline processes events. Stateless per run: concurrent Runs share only
// the read-only company master, the external ledger, and one circuit breaker
// per external service.
type Pipeline struct {
	cfg        Config
	fetcher    Fetcher
	extractor  docai.Client
	normalizer *normalize.Normalizer
	master     *master.Master
	guard      ledger.Ledger
	records    kintone.Client
	mapping    FieldMapping
	auditor    audit.Writer

	extractBreaker *resilience.Breaker
	recordsBreaker *resilience.Breaker
}

// New assembles a Pipeline from its collaborators.
func New(
	cfg Config,
	fetcher Fetcher,
	extractor docai.Client,
	normalizer *normalize.Normalizer,
	m *master.Master,
	guard ledger.Ledger,
	records kintone.Client,
	mapping FieldMapping,
	auditor audit.Writer,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		fetcher:    fetcher,
		extractor:  extractor,
		normalizer: normalizer,
		master:     m,
		guard:      guard,
		records:    records,
		mapping:    mapping,
		auditor:    auditor,

		extractBreaker: resilience.NewBreaker("extraction", resilience.BreakerConfig{}),
		recordsBreaker: resilience.NewBreaker("record-store", resilience.BreakerConfig{}),
	}
}

// Run processes one triggering event to its terminal state. The returned
// Result always carries the full stage trail; the error is non-nil only for
// terminal failures (extraction, exhausted upsert, ledger, audit write).
// The audit record is written in every case, including failures — if the
// audit write itself fails, that error is escalated alongside whatever
// failure preceded it.
func (p *Pipeline) Run(ctx context.Context, event model.Event) (*model.Result, error) {
	result := &model.Result{
		RunID:          uuid.New().String(),
		SourceObjectID: event.SourceObjectID(),
		State:          model.StateReceived,
	}
	log := zap.L().With(
		zap.String("run_id", result.RunID),
		zap.String("source_object", result.SourceObjectID),
	)
	log.Info("pipeline: run started")

	track := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		stage := model.StageResult{
			Name:       name,
			Status:     model.StageComplete,
			DurationMS: time.Since(start).Milliseconds(),
		}
		if err != nil {
			stage.Status = model.StageFailed
			stage.Error = err.Error()
			log.Error("pipeline: stage failed", zap.String("stage", name), zap.Error(err))
		} else {
			log.Debug("pipeline: stage complete", zap.String("stage", name), zap.Int64("duration_ms", stage.DurationMS))
		}
		result.Stages = append(result.Stages, stage)
		return err
	}
	skip := func(name string) {
		result.Stages = append(result.Stages, model.StageResult{Name: name, Status: model.StageSkipped})
	}

	var runErr error

	// Extraction: fetch the document and call the processor. Transient
	// service failures retry under the shared policy, each attempt passing
	// through the service's circuit breaker; exhaustion, an open circuit, or
	// a fatal response is terminal for the event.
	var raw *model.RawExtraction
	var contentHash string
	if err := track("extract", func() error {
		data, err := p.fetcher.Fetch(ctx, event)
		if err != nil {
			return err
		}
		contentHash = model.ContentHash(data)

		raw, err = resilience.DoVal(ctx, p.retryPolicy("extract"), func(ctx context.Context) (*model.RawExtraction, error) {
			return resilience.Break(ctx, p.extractBreaker, func(ctx context.Context) (*model.RawExtraction, error) {
				return p.extractor.Process(ctx, docai.Document{
					SourceObjectID: event.SourceObjectID(),
					Content:        data,
					MimeType:       event.ContentType,
				})
			})
		})
		return err
	}); err != nil {
		runErr = &ExtractionError{Err: err}
	} else {
		result.State = model.StateExtracted
	}

	result.Fingerprint = event.Fingerprint(contentHash)

	// Normalization and matching cannot fail the event: problems land on the
	// invoice as warnings.
	var inv model.CanonicalInvoice
	if raw != nil {
		_ = track("normalize", func() error {
			inv = p.normalizer.Normalize(*raw)
			return nil
		})
		result.State = model.StateNormalized
		result.Invoice = &inv

		_ = track("match", func() error {
			m := p.master.Match(inv.VendorName, p.cfg.FuzzyMatchThreshold)
			result.Match = &m
			if m.Method == model.MatchNone {
				if inv.VendorName != "" {
					inv.AddWarning(model.Warning{Kind: model.WarnNoMatch, Field: "vendor_name", Detail: inv.VendorName})
				}
			} else {
				inv.VendorCode = m.MatchedCode
			}
			return nil
		})
		result.State = model.StateMatched

		log.Info("pipeline: invoice normalized",
			zap.String("vendor", inv.VendorName),
			zap.String("vendor_code", inv.VendorCode),
			zap.Int("warnings", len(inv.Warnings)),
		)
	}

	outcome := p.commit(ctx, result, &inv, track, skip, &runErr)
	result.Outcome = outcome

	// Audit is unconditional: it records successes, duplicates, and every
	// failure mode above.
	auditErr := track("audit", func() error {
		rec := model.AuditRecord{
			SourceObjectID: result.SourceObjectID,
			RawExtraction:  raw,
			UpsertOutcome:  outcome,
			ProcessedAt:    time.Now().UTC(),
		}
		if result.Invoice != nil {
			rec.CanonicalInvoice = result.Invoice
			rec.Warnings = result.Invoice.Warnings
		}
		if runErr != nil {
			rec.State = model.StateFailed
			rec.Error = runErr.Error()
		} else {
			rec.State = model.StateAudited
		}
		return p.auditor.Persist(ctx, rec)
	})

	switch {
	case auditErr != nil && runErr != nil:
		result.State = model.StateFailed
		return result, errors.Join(runErr, auditErr)
	case auditErr != nil:
		result.State = model.StateFailed
		return result, auditErr
	case runErr != nil:
		result.State = model.StateFailed
		return result, runErr
	}

	result.State = model.StateDone
	log.Info("pipeline: run complete",
		zap.String("status", string(outcome.Status)),
		zap.String("record_id", outcome.ExternalRecordID),
	)
	return result, nil
}

// commit runs the duplicate check and, when this run wins the reservation,
// the bounded-retry upsert. Exactly one record is created per fingerprint;
// losing racers and redeliveries report skipped_duplicate without touching
// the record store. A failed upsert releases the reservation so external
// redelivery can retry the event.
func (p *Pipeline) commit(
	ctx context.Context,
	result *model.Result,
	inv *model.CanonicalInvoice,
	track func(string, func() error) error,
	skip func(string),
	runErr *error,
) *model.UpsertOutcome {
	if *runErr != nil {
		skip("duplicate_check")
		skip("upsert")
		return &model.UpsertOutcome{Status: model.UpsertFailed, ErrorDetail: (*runErr).Error()}
	}

	var proceed bool
	if err := track("duplicate_check", func() error {
		var err error
		proceed, err = p.guard.Reserve(ctx, result.Fingerprint)
		return err
	}); err != nil {
		// Without the ledger the exactly-once guarantee is gone, so the
		// event fails rather than risking a double commit.
		*runErr = &UpsertError{Err: err}
		skip("upsert")
		return &model.UpsertOutcome{Status: model.UpsertFailed, ErrorDetail: err.Error()}
	}
	result.State = model.StateDuplicateCheck

	if !proceed {
		skip("upsert")
		return &model.UpsertOutcome{Status: model.UpsertSkippedDuplicate}
	}

	outcome := &model.UpsertOutcome{}
	if err := track("upsert", func() error {
		record := p.mapping.RecordFor(*inv, deref(result.Match))
		id, err := resilience.DoVal(ctx, p.retryPolicy("upsert"), func(ctx context.Context) (string, error) {
			return resilience.Break(ctx, p.recordsBreaker, func(ctx context.Context) (string, error) {
				return p.records.CreateRecord(ctx, p.cfg.AppID, record)
			})
		})
		if err != nil {
			return err
		}
		outcome.ExternalRecordID = id
		return nil
	}); err != nil {
		outcome.Status = model.UpsertFailed
		outcome.ErrorDetail = err.Error()
		*runErr = &UpsertError{Err: err}
		if relErr := p.guard.Release(ctx, result.Fingerprint); relErr != nil {
			zap.L().Error("pipeline: ledger release failed", zap.String("fingerprint", result.Fingerprint), zap.Error(relErr))
		}
		return outcome
	}

	outcome.Status = model.UpsertCreated
	result.State = model.StateUpserted

	if err := p.guard.Commit(ctx, result.Fingerprint, outcome.ExternalRecordID); err != nil {
		// The record exists downstream but the ledger missed it; surface the
		// inconsistency instead of pretending the run was clean.
		outcome.ErrorDetail = err.Error()
		*runErr = &UpsertError{Err: eris.Wrap(err, "record created but ledger commit failed")}
	}
	return outcome
}

func (p *Pipeline) retryPolicy(operation string) resilience.Policy {
	policy := resilience.DefaultPolicy()
	if p.cfg.MaxUpsertRetries > 0 {
		policy.MaxAttempts = p.cfg.MaxUpsertRetries
	}
	policy.OnRetry = resilience.RetryLogger("invoice-pipeline", operation)
	return policy
}

func deref(m *model.MatchResult) model.MatchResult {
	if m == nil {
		return model.MatchResult{Method: model.MatchNone}
	}
	return *m
}
