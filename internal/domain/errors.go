package domain

import "errors"

var (
	// ErrEmptyQuery signals an empty or whitespace-only query.
	ErrEmptyQuery = errors.New("empty query")
	// ErrEmptyDocument signals a document with no extractable text.
	ErrEmptyDocument = errors.New("empty document")
	// ErrVectorDimMismatch signals a vector dimension mismatch between a stored
	// record and a freshly computed embedding. This is a configuration error.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrGenerationFailed signals a generative model failure.
	ErrGenerationFailed = errors.New("generation failed")
	// ErrWebSearchUnavailable signals that the web search collaborator is not configured.
	ErrWebSearchUnavailable = errors.New("web search unavailable")
	// ErrSynthesisUnavailable signals that the speech synthesis collaborator is not configured.
	ErrSynthesisUnavailable = errors.New("speech synthesis unavailable")
	// ErrSynthesisFailed signals a speech synthesis failure.
	ErrSynthesisFailed = errors.New("speech synthesis failed")
)

// KeyPrefix namespaces every key the engine writes to the key-value store.
const KeyPrefix = "docengine:"
