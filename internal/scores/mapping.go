package scores

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Score is one subject and its extracted value.
// Value holds the digit run exactly as recognized, or NotFound.
type Score struct {
	Subject string `json:"subject"`
	Value   string `json:"value"`
}

// Found reports whether a score was extracted for the subject.
func (s Score) Found() bool { return s.Value != NotFound }

// Mapping holds exactly one Score per vocabulary subject, in vocabulary order.
type Mapping struct {
	scores []Score
}

// NewMapping returns a mapping with every subject set to NotFound.
func NewMapping(vocab Vocabulary) Mapping {
	scores := make([]Score, len(vocab.subjects))
	for i, s := range vocab.subjects {
		scores[i] = Score{Subject: s, Value: NotFound}
	}
	return Mapping{scores: scores}
}

// Get returns the value for subject and whether the subject is part of the mapping.
func (m Mapping) Get(subject string) (string, bool) {
	for _, s := range m.scores {
		if s.Subject == subject {
			return s.Value, true
		}
	}
	return "", false
}

// set replaces the value of an existing subject; unknown subjects are ignored.
func (m Mapping) set(subject, value string) {
	for i := range m.scores {
		if m.scores[i].Subject == subject {
			m.scores[i].Value = value
			return
		}
	}
}

// Scores returns a copy of the entries in vocabulary order.
func (m Mapping) Scores() []Score {
	out := make([]Score, len(m.scores))
	copy(out, m.scores)
	return out
}

// Len returns the number of subjects in the mapping.
func (m Mapping) Len() int { return len(m.scores) }

// FoundCount returns how many subjects have a score.
func (m Mapping) FoundCount() int {
	n := 0
	for _, s := range m.scores {
		if s.Found() {
			n++
		}
	}
	return n
}

// Map returns the mapping as a plain map.
func (m Mapping) Map() map[string]string {
	out := make(map[string]string, len(m.scores))
	for _, s := range m.scores {
		out[s.Subject] = s.Value
	}
	return out
}

// Lines renders "subject: value" lines in vocabulary order, without a trailing newline.
func (m Mapping) Lines() string {
	lines := make([]string, len(m.scores))
	for i, s := range m.scores {
		lines[i] = s.Subject + ": " + s.Value
	}
	return strings.Join(lines, "\n")
}

// MarshalJSON encodes the mapping as an object whose keys keep vocabulary order.
func (m Mapping) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range m.scores {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(s.Subject)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of subject to value, keeping key order.
func (m *Mapping) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("scores: expected object, got %v", tok)
	}
	var out []Score
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		subject, _ := tok.(string)
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("scores: value for %q: %w", subject, err)
		}
		out = append(out, Score{Subject: subject, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	m.scores = out
	return nil
}

// MarshalYAML encodes the mapping as a YAML mapping in vocabulary order.
func (m Mapping) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, s := range m.scores {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.Subject},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s.Value},
		)
	}
	return node, nil
}
