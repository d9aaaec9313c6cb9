package scores

import (
	"fmt"
	"strings"
)

// MergePolicy decides how per-page mappings combine into a document mapping.
type MergePolicy string

const (
	// LastPageWins overwrites every subject with each later page's value,
	// so a subject found on page 1 and missing on page 2 ends up NotFound.
	LastPageWins MergePolicy = "last-page-wins"
	// FirstFoundWins keeps the first found value for each subject.
	FirstFoundWins MergePolicy = "first-found-wins"
)

// ParseMergePolicy parses a policy name. An empty name selects LastPageWins.
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", LastPageWins:
		return LastPageWins, nil
	case FirstFoundWins:
		return FirstFoundWins, nil
	default:
		return "", fmt.Errorf("unknown merge policy %q (want %s or %s)", s, LastPageWins, FirstFoundWins)
	}
}

// Merge folds page mappings in page order. With no pages every subject is NotFound.
func Merge(vocab Vocabulary, pages []Mapping, policy MergePolicy) Mapping {
	out := NewMapping(vocab)
	for _, page := range pages {
		for _, s := range page.scores {
			switch policy {
			case FirstFoundWins:
				if cur, ok := out.Get(s.Subject); ok && cur == NotFound {
					out.set(s.Subject, s.Value)
				}
			default:
				out.set(s.Subject, s.Value)
			}
		}
	}
	return out
}

// Page is the recognized text and extracted scores for one page.
type Page struct {
	Text   string
	Scores Mapping
}

// Document is the aggregated result for a whole document.
type Document struct {
	Text   string
	Scores Mapping
}

// Aggregate joins page texts with newlines in page order and merges the scores.
func Aggregate(vocab Vocabulary, pages []Page, policy MergePolicy) Document {
	var b strings.Builder
	mappings := make([]Mapping, 0, len(pages))
	for _, p := range pages {
		b.WriteString(p.Text)
		b.WriteString("\n")
		mappings = append(mappings, p.Scores)
	}
	return Document{
		Text:   strings.TrimSpace(b.String()),
		Scores: Merge(vocab, mappings, policy),
	}
}
