package pipeline

// ExtractionError marks a failed or unparseable document-understanding call.
// Terminal for the event: the run moves to failed after the audit record is
// written.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string { return "extraction: " + e.Err.Error() }

func (e *ExtractionError) Unwrap() error { return e.Err }

// UpsertError marks a record-store commit that failed after the bounded
// retry (or immediately, for fatal API errors). Terminal for the event;
// audit still records it.
type UpsertError struct {
	Err error
}

func (e *UpsertError) Error() string { return "upsert: " + e.Err.Error() }

func (e *UpsertError) Unwrap() error { return e.Err }
