package model

// EventState tracks a pipeline run through its state machine. Failed is
// terminal and reachable from any stage; audit still runs before the pipeline
// settles there.
type EventState string

const (
	StateReceived       EventState = "received"
	StateExtracted      EventState = "extracted"
	StateNormalized     EventState = "normalized"
	StateMatched        EventState = "matched"
	StateDuplicateCheck EventState = "duplicate_check"
	StateUpserted       EventState = "upserted"
	StateAudited        EventState = "audited"
	StateDone           EventState = "done"
	StateFailed         EventState = "failed"
)

// StageStatus is the outcome of a single pipeline stage.
type StageStatus string

const (
	StageComplete StageStatus = "complete"
	StageFailed   StageStatus = "failed"
	StageSkipped  StageStatus = "skipped"
)

// StageResult records one stage of a run for observability and audit.
type StageResult struct {
	Name       string      `json:"name"`
	Status     StageStatus `json:"status"`
	DurationMS int64       `json:"duration_ms"`
	Error      string      `json:"error,omitempty"`
}

// Result is the aggregate outcome of one pipeline run.
type Result struct {
	RunID          string            `json:"run_id"`
	SourceObjectID string            `json:"source_object_id"`
	Fingerprint    string            `json:"fingerprint"`
	State          EventState        `json:"state"`
	Stages         []StageResult     `json:"stages"`
	Invoice        *CanonicalInvoice `json:"invoice,omitempty"`
	Match          *MatchResult      `json:"match,omitempty"`
	Outcome        *UpsertOutcome    `json:"outcome,omitempty"`
}
