package domain

import "time"

// DocumentStatus is the processing state of an uploaded document.
type DocumentStatus string

const (
	// StatusProcessed indicates extraction succeeded.
	StatusProcessed DocumentStatus = "processed"
	// StatusFailed indicates both extraction strategies failed. Terminal, not retried.
	StatusFailed DocumentStatus = "failed"
)

// IndexingState tracks whether a document's chunks were embedded and stored.
type IndexingState string

const (
	// NotIndexed is the initial state. Single-page documents stay here.
	NotIndexed IndexingState = "not_indexed"
	// Indexed means the document's chunks are in the user collection.
	Indexed IndexingState = "indexed"
)

// ExtractionMethod identifies which extraction strategy produced a result.
type ExtractionMethod string

const (
	// MethodPrimary is the structured Document-AI extractor.
	MethodPrimary ExtractionMethod = "primary"
	// MethodFallback is the regex-based extractor.
	MethodFallback ExtractionMethod = "fallback"
)

// KeyValue is a form field extracted from a document.
type KeyValue struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Entity is a typed mention found in document text (email, phone, currency, ...).
type Entity struct {
	Type        string  `json:"type"`
	MentionText string  `json:"mention_text"`
	Confidence  float64 `json:"confidence"`
}

// Table holds extracted tabular data as rows of cell text.
type Table struct {
	HeaderRows [][]string `json:"header_rows,omitempty"`
	Rows       [][]string `json:"rows"`
}

// ExtractionResult is the structured output of either extraction strategy.
// Method is the discriminant: primary results carry computed confidences,
// fallback results carry fixed ones.
type ExtractionResult struct {
	Text          string           `json:"text"`
	KeyValuePairs []KeyValue       `json:"key_value_pairs"`
	Entities      []Entity         `json:"entities"`
	Tables        []Table          `json:"tables"`
	Confidence    float64          `json:"confidence"`
	Method        ExtractionMethod `json:"method"`
}

// Document is one uploaded file and the outcome of processing it.
type Document struct {
	ID            string           `json:"id"`
	Filename      string           `json:"filename"`
	PageCount     int              `json:"page_count"`
	Status        DocumentStatus   `json:"status"`
	FailureReason string           `json:"failure_reason,omitempty"`
	Extraction    ExtractionResult `json:"extraction"`
	IndexingState IndexingState    `json:"indexing_state"`
	ChunkCount    int              `json:"chunk_count"`
	UploadedAt    time.Time        `json:"uploaded_at"`
}
