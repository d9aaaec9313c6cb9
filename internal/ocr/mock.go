package ocr

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// MockEngine is an Engine for testing.
type MockEngine struct {
	EngineName string
	Latency    time.Duration
	ShouldFail bool

	// Responses are returned in call order; the last one repeats.
	Responses [][]Segment

	mu           sync.Mutex
	inputs       []Input
	requestCount atomic.Int64
	initCount    atomic.Int64
	closed       atomic.Bool
}

// NewMockEngine creates a mock returning one full-confidence segment per text.
func NewMockEngine(name string, texts ...string) *MockEngine {
	segs := make([]Segment, 0, len(texts))
	for _, t := range texts {
		segs = append(segs, Segment{Text: t, Confidence: 1})
	}
	return &MockEngine{EngineName: name, Responses: [][]Segment{segs}}
}

// Name returns the engine identifier.
func (m *MockEngine) Name() string {
	if m.EngineName == "" {
		return "mock"
	}
	return m.EngineName
}

// Init counts initializations.
func (m *MockEngine) Init(ctx context.Context) error {
	m.initCount.Add(1)
	return nil
}

// Close marks the engine closed.
func (m *MockEngine) Close() error {
	m.closed.Store(true)
	return nil
}

// Recognize returns the next scripted response.
func (m *MockEngine) Recognize(ctx context.Context, in Input) (*Recognition, error) {
	n := m.requestCount.Add(1)

	m.mu.Lock()
	m.inputs = append(m.inputs, in)
	m.mu.Unlock()

	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.ShouldFail {
		return nil, fmt.Errorf("mock engine configured to fail")
	}

	var segs []Segment
	if len(m.Responses) > 0 {
		idx := int(n) - 1
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		segs = append(segs, m.Responses[idx]...)
	}
	return &Recognition{Engine: m.Name(), Segments: segs}, nil
}

// RequestCount returns the number of Recognize calls.
func (m *MockEngine) RequestCount() int64 { return m.requestCount.Load() }

// InitCount returns the number of Init calls.
func (m *MockEngine) InitCount() int64 { return m.initCount.Load() }

// Closed reports whether Close was called.
func (m *MockEngine) Closed() bool { return m.closed.Load() }

// Inputs returns the inputs received so far.
func (m *MockEngine) Inputs() []Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Input, len(m.inputs))
	copy(out, m.inputs)
	return out
}

// Verify interface
var _ Engine = (*MockEngine)(nil)
