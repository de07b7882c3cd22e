package model

// Entity is one typed, confidence-scored field detected by the document
// understanding service. Line-item entities carry their cells as nested
// Properties.
type Entity struct {
	Type            string   `json:"type"`
	MentionText     string   `json:"mention_text"`
	NormalizedValue string   `json:"normalized_value,omitempty"`
	Confidence      float64  `json:"confidence"`
	Properties      []Entity `json:"properties,omitempty"`
}

// RawExtraction is the verbatim output of one extraction-service call,
// tied to the storage object that triggered the run. Immutable once received.
type RawExtraction struct {
	SourceObjectID string   `json:"source_object_id"`
	Entities       []Entity `json:"entities"`
	Text           string   `json:"text,omitempty"` // full OCR text, kept for audit
}
