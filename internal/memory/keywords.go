package memory

import (
	"sort"
	"strings"
	"unicode"
)

// KeywordExtractor turns free text into candidate concept tokens. The engine
// treats extraction quality as a pluggable capability; the only hard
// requirement is determinism for a given input.
type KeywordExtractor interface {
	Extract(text string) []string
}

// stopwords filtered by the default extractor.
var defaultStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "has": {}, "have": {}, "this": {},
	"that": {}, "with": {}, "from": {}, "they": {}, "been": {}, "were": {},
	"will": {}, "would": {}, "there": {}, "their": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "while": {}, "into": {},
	"about": {}, "after": {}, "before": {}, "then": {}, "than": {},
	"some": {}, "such": {}, "very": {}, "just": {}, "also": {},
}

// StopwordExtractor is the default KeywordExtractor: lowercase, split on
// non-alphanumeric runs, drop stopwords and tokens of length <= 2, dedupe,
// and return tokens in sorted order.
type StopwordExtractor struct {
	stopwords map[string]struct{}
}

// NewStopwordExtractor returns the default deterministic extractor.
func NewStopwordExtractor() *StopwordExtractor {
	return &StopwordExtractor{stopwords: defaultStopwords}
}

// Extract implements KeywordExtractor.
func (e *StopwordExtractor) Extract(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{})
	var out []string
	for _, tok := range fields {
		if len(tok) <= 2 {
			continue
		}
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}
