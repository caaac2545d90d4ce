package domain

import "strings"

// Default chunking parameters, matching the policy corpus granularity.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunk is a contiguous slice of a document's extracted text.
// OverlapWithPrevious is the number of characters shared with the prior
// chunk; it is zero for the first chunk.
type Chunk struct {
	Index               int
	Text                string
	OverlapWithPrevious int
}

// SplitText splits text into overlapping fixed-size chunks. Chunk i begins
// where chunk i-1 ended minus overlap characters. The last chunk may be
// shorter than size. Whitespace-only input yields no chunks.
//
// Deterministic: the same input always produces the same boundaries.
// Invariant: concatenating the chunks, with each chunk's leading overlap
// stripped (except the first), reconstructs the input exactly.
func SplitText(text string, size, overlap int) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 5
	}

	runes := []rune(text)
	var chunks []Chunk
	start := 0
	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		prevOverlap := 0
		if len(chunks) > 0 {
			prevOverlap = overlap
		}
		chunks = append(chunks, Chunk{
			Index:               len(chunks),
			Text:                string(runes[start:end]),
			OverlapWithPrevious: prevOverlap,
		})

		if end == len(runes) {
			break
		}
		start = end - overlap
	}
	return chunks
}
