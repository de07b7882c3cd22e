package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Event is the storage notification that triggers one pipeline run. The
// delivery mechanism (bucket notifications, webhooks, redelivery policy) is
// external; the pipeline only sees this value.
type Event struct {
	Bucket      string `json:"bucket"`
	ObjectName  string `json:"name"`
	ContentType string `json:"content_type,omitempty"`
}

// SourceObjectID returns the stable identifier for the triggering object.
func (e Event) SourceObjectID() string {
	if e.Bucket == "" {
		return e.ObjectName
	}
	return e.Bucket + "/" + e.ObjectName
}

// Fingerprint derives the idempotency key for this event. Storage
// notification systems may redeliver; two deliveries of the same object (and,
// when available, the same content) must produce the same fingerprint. The
// content hash is optional so path-only deduplication still works when the
// document bytes were never fetched.
func (e Event) Fingerprint(contentHash string) string {
	h := sha256.New()
	h.Write([]byte(e.SourceObjectID()))
	if contentHash != "" {
		h.Write([]byte{0})
		h.Write([]byte(contentHash))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash returns the hex SHA-256 of the document bytes.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// UpsertStatus is the terminal status of a record-store commit attempt.
type UpsertStatus string

const (
	UpsertCreated          UpsertStatus = "created"
	UpsertSkippedDuplicate UpsertStatus = "skipped_duplicate"
	UpsertFailed           UpsertStatus = "failed"
)

// UpsertOutcome is the result of pushing one canonical invoice downstream.
type UpsertOutcome struct {
	ExternalRecordID string       `json:"external_record_id,omitempty"`
	Status           UpsertStatus `json:"status"`
	ErrorDetail      string       `json:"error_detail,omitempty"`
}

// AuditRecord is the durable JSON document persisted once per processed
// event, regardless of outcome. It is the system's source of truth for
// reprocessing decisions.
type AuditRecord struct {
	SourceObjectID   string            `json:"source_object_id"`
	CanonicalInvoice *CanonicalInvoice `json:"canonical_invoice,omitempty"`
	Warnings         []Warning         `json:"warnings,omitempty"`
	UpsertOutcome    *UpsertOutcome    `json:"upsert_outcome,omitempty"`
	RawExtraction    *RawExtraction    `json:"raw_extraction,omitempty"`
	State            EventState        `json:"state"`
	Error            string            `json:"error,omitempty"`
	ProcessedAt      time.Time         `json:"processed_at"`
}
