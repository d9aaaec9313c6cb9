package metrics

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultCapacity bounds the number of metrics kept in memory.
const DefaultCapacity = 10000

// Recorder keeps recent engine call metrics in memory.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	mu        sync.RWMutex
	metrics   []Metric
	capacity  int
	fallbacks int
	documents int
}

// NewRecorder creates a recorder holding at most capacity metrics.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{capacity: capacity}
}

// Record appends a metric, evicting the oldest once capacity is reached.
func (r *Recorder) Record(m Metric) {
	if r == nil {
		return
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.metrics) >= r.capacity {
		copy(r.metrics, r.metrics[1:])
		r.metrics = r.metrics[:len(r.metrics)-1]
	}
	r.metrics = append(r.metrics, m)
}

// RecordOpts attributes a call.
type RecordOpts struct {
	ItemKey string
	Role    string
}

// RecordOCRCall records the outcome of one engine call.
func (r *Recorder) RecordOCRCall(opts RecordOpts, engine string, chars, segments int, duration time.Duration, err error) {
	m := Metric{
		ItemKey:          opts.ItemKey,
		Role:             opts.Role,
		Engine:           engine,
		Chars:            chars,
		Segments:         segments,
		ExecutionSeconds: duration.Seconds(),
		Success:          err == nil,
	}
	if err != nil {
		m.ErrorType = errorType(err)
	}
	r.Record(m)
}

// RecordFallback counts a page that needed the secondary engine.
func (r *Recorder) RecordFallback() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.fallbacks++
	r.mu.Unlock()
}

// RecordDocument counts a processed document.
func (r *Recorder) RecordDocument() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.documents++
	r.mu.Unlock()
}

// List returns a copy of the recorded metrics, oldest first.
func (r *Recorder) List() []Metric {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metric, len(r.metrics))
	copy(out, r.metrics)
	return out
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "context_cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "engine_error"
	}
}
