package ingest

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/docuextract/docengine/internal/domain"
)

// Fixed confidences reported by the regex extractor. The fallback has no
// model behind it, so each pattern class carries a constant score.
const (
	keyValueConfidence = 0.8
	emailConfidence    = 0.9
	phoneConfidence    = 0.85
	currencyConfidence = 0.9
	overallConfidence  = 0.75
)

var (
	keyValueRegex = regexp.MustCompile(`^([^:]+):\s*(.+)$`)
	emailRegex    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRegex    = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	currencyRegex = regexp.MustCompile(`\$\s*\d+(?:,\d{3})*(?:\.\d{2})?`)
)

// fallbackExtract decodes the bytes as text and pulls out key-value lines
// and common entity patterns. Invalid UTF-8 sequences are dropped, matching
// a lenient text decode. Returns ok=false when no readable text remains.
func fallbackExtract(content []byte) (domain.ExtractionResult, bool) {
	text := decodeLenient(content)
	if strings.TrimSpace(text) == "" {
		return domain.ExtractionResult{}, false
	}

	result := domain.ExtractionResult{
		Text:       text,
		Confidence: overallConfidence,
		Method:     domain.MethodFallback,
	}

	for _, line := range strings.Split(text, "\n") {
		m := keyValueRegex.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		result.KeyValuePairs = append(result.KeyValuePairs, domain.KeyValue{
			Key:        strings.TrimSpace(m[1]),
			Value:      strings.TrimSpace(m[2]),
			Confidence: keyValueConfidence,
		})
	}

	result.Entities = append(result.Entities, matchEntities(text, emailRegex, "email", emailConfidence)...)
	result.Entities = append(result.Entities, matchEntities(text, phoneRegex, "phone", phoneConfidence)...)
	result.Entities = append(result.Entities, matchEntities(text, currencyRegex, "currency", currencyConfidence)...)

	return result, true
}

func matchEntities(text string, re *regexp.Regexp, entityType string, confidence float64) []domain.Entity {
	matches := re.FindAllString(text, -1)
	entities := make([]domain.Entity, 0, len(matches))
	for _, m := range matches {
		entities = append(entities, domain.Entity{
			Type:        entityType,
			MentionText: m,
			Confidence:  confidence,
		})
	}
	return entities
}

// decodeLenient converts bytes to a string, skipping invalid UTF-8 sequences.
func decodeLenient(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}

	var b strings.Builder
	b.Grow(len(content))
	for len(content) > 0 {
		r, size := utf8.DecodeRune(content)
		if r == utf8.RuneError && size == 1 {
			content = content[1:]
			continue
		}
		b.WriteRune(r)
		content = content[size:]
	}
	return b.String()
}
