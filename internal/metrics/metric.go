// Package metrics records usage and latency of OCR engine calls.
package metrics

import "time"

// Roles of an engine call within the recognizer.
const (
	RolePrimary   = "primary"
	RoleSecondary = "secondary"
)

// Metric represents a single recorded OCR engine call.
type Metric struct {
	// Attribution
	ItemKey string `json:"item_key,omitempty"` // e.g. "rapor_page_0"
	Role    string `json:"role,omitempty"`

	Engine string `json:"engine"`

	// Output size
	Chars    int `json:"chars"`
	Segments int `json:"segments"`

	ExecutionSeconds float64 `json:"execution_seconds"`

	Success   bool   `json:"success"`
	ErrorType string `json:"error_type,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Duration returns the execution time as a time.Duration.
func (m Metric) Duration() time.Duration {
	return time.Duration(m.ExecutionSeconds * float64(time.Second))
}
