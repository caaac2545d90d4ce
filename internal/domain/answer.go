package domain

// SourceOrigin tags where a piece of evidence came from.
type SourceOrigin string

const (
	// OriginUser marks evidence from a user-uploaded document.
	OriginUser SourceOrigin = "user"
	// OriginPolicy marks evidence from the policy corpus.
	OriginPolicy SourceOrigin = "policy"
	// OriginWeb marks evidence from live web search.
	OriginWeb SourceOrigin = "web"
)

// Source is a citation attached to an answer.
type Source struct {
	Origin     SourceOrigin `json:"origin"`
	Title      string       `json:"title,omitempty"`
	DocumentID string       `json:"document_id,omitempty"`
	URL        string       `json:"url,omitempty"`
	Page       int          `json:"page,omitempty"`
	ChunkIndex int          `json:"chunk_index,omitempty"`
	Score      float64      `json:"score,omitempty"`
}

// Answer is the result of a retrieval-augmented query.
type Answer struct {
	Text string `json:"answer"`
	// Sources lists citations in the order their snippets were used.
	Sources []Source `json:"sources"`
	// Snippets are the raw context snippets, for optional UI disclosure.
	Snippets []string `json:"snippets"`
	// ContextSufficient is false when local evidence fell below the
	// sufficiency threshold and the engine fell back to web search.
	ContextSufficient bool `json:"context_sufficient"`
	WebSearchUsed     bool `json:"web_search_used"`
}

// WebResult is one hit from the live web search collaborator.
type WebResult struct {
	Snippet string
	URL     string
	Title   string
}
