package scores

import (
	"regexp"
)

// Extractor finds the first "<subject> <digits>" occurrence for each subject.
type Extractor struct {
	vocab    Vocabulary
	patterns []*regexp.Regexp
}

// NewExtractor compiles one case-insensitive pattern per subject.
// The subject name is matched literally, followed by optional whitespace and a digit run.
func NewExtractor(vocab Vocabulary) *Extractor {
	patterns := make([]*regexp.Regexp, len(vocab.subjects))
	for i, s := range vocab.subjects {
		patterns[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(s) + `\s*([0-9]+)`)
	}
	return &Extractor{vocab: vocab, patterns: patterns}
}

// Vocabulary returns the extractor's vocabulary.
func (e *Extractor) Vocabulary() Vocabulary { return e.vocab }

// Extract returns a mapping with an entry for every subject.
// Subjects with no match are NotFound. Values are kept as text, leading zeros included.
func (e *Extractor) Extract(text string) Mapping {
	m := NewMapping(e.vocab)
	for i, re := range e.patterns {
		if match := re.FindStringSubmatch(text); match != nil {
			m.scores[i].Value = match[1]
		}
	}
	return m
}
