// Package scores extracts per-subject scores from recognized report-card text
// and merges them across the pages of a document.
package scores

import (
	"errors"
	"fmt"
	"strings"
)

// NotFound is the value recorded for a subject whose score was not found.
const NotFound = "N/A"

var (
	// ErrEmptyVocabulary is returned when a vocabulary has no subjects.
	ErrEmptyVocabulary = errors.New("vocabulary is empty")
	// ErrInvalidSubject is returned for blank or duplicate subject names.
	ErrInvalidSubject = errors.New("invalid subject")
)

// DefaultSubjects are the subjects found on the report cards this tool was built for.
var DefaultSubjects = []string{
	"Bahasa Indonesia",
	"Matematika",
	"Bahasa Inggris",
	"Pendidikan Pancasila",
}

// Vocabulary is the fixed, ordered set of subject names searched for in every page.
// It is immutable once constructed.
type Vocabulary struct {
	subjects []string
}

// NewVocabulary validates and copies the given subjects.
func NewVocabulary(subjects []string) (Vocabulary, error) {
	if len(subjects) == 0 {
		return Vocabulary{}, ErrEmptyVocabulary
	}
	seen := make(map[string]bool, len(subjects))
	out := make([]string, 0, len(subjects))
	for _, s := range subjects {
		name := strings.TrimSpace(s)
		if name == "" {
			return Vocabulary{}, fmt.Errorf("%w: blank name", ErrInvalidSubject)
		}
		key := strings.ToLower(name)
		if seen[key] {
			return Vocabulary{}, fmt.Errorf("%w: duplicate %q", ErrInvalidSubject, name)
		}
		seen[key] = true
		out = append(out, name)
	}
	return Vocabulary{subjects: out}, nil
}

// MustVocabulary is NewVocabulary that panics on error. Intended for constants and tests.
func MustVocabulary(subjects ...string) Vocabulary {
	v, err := NewVocabulary(subjects)
	if err != nil {
		panic(err)
	}
	return v
}

// DefaultVocabulary returns the vocabulary built from DefaultSubjects.
func DefaultVocabulary() Vocabulary {
	return MustVocabulary(DefaultSubjects...)
}

// Subjects returns a copy of the subject names in order.
func (v Vocabulary) Subjects() []string {
	out := make([]string, len(v.subjects))
	copy(out, v.subjects)
	return out
}

// Len returns the number of subjects.
func (v Vocabulary) Len() int { return len(v.subjects) }
