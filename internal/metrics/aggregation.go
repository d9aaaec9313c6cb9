package metrics

import (
	"math"
	"sort"
	"time"
)

// Summary provides a summary of metrics for one engine.
type Summary struct {
	Count          int           `json:"count"`
	TotalChars     int           `json:"total_chars"`
	TotalTime      time.Duration `json:"total_time"`
	SuccessCount   int           `json:"success_count"`
	ErrorCount     int           `json:"error_count"`
	AvgChars       float64       `json:"avg_chars"`
	AvgTimeSeconds float64       `json:"avg_time_seconds"`
	LatencyP50     float64       `json:"latency_p50"`
	LatencyP95     float64       `json:"latency_p95"`
}

// Report is the snapshot served by the metrics endpoint.
type Report struct {
	Documents int                 `json:"documents"`
	Fallbacks int                 `json:"fallbacks"`
	Engines   map[string]*Summary `json:"engines"`
}

// Summarize computes a summary over the given metrics.
func Summarize(metrics []Metric) *Summary {
	s := &Summary{Count: len(metrics)}
	latencies := make([]float64, 0, len(metrics))
	for _, m := range metrics {
		s.TotalChars += m.Chars
		s.TotalTime += m.Duration()
		latencies = append(latencies, m.ExecutionSeconds)
		if m.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
	}

	if s.Count > 0 {
		s.AvgChars = float64(s.TotalChars) / float64(s.Count)
		s.AvgTimeSeconds = s.TotalTime.Seconds() / float64(s.Count)
		sort.Float64s(latencies)
		s.LatencyP50 = percentile(latencies, 50)
		s.LatencyP95 = percentile(latencies, 95)
	}
	return s
}

// Report returns per-engine summaries plus document and fallback counts.
func (r *Recorder) Report() Report {
	rep := Report{Engines: make(map[string]*Summary)}
	if r == nil {
		return rep
	}

	byEngine := make(map[string][]Metric)
	for _, m := range r.List() {
		byEngine[m.Engine] = append(byEngine[m.Engine], m)
	}
	for engine, ms := range byEngine {
		rep.Engines[engine] = Summarize(ms)
	}

	r.mu.RLock()
	rep.Documents = r.documents
	rep.Fallbacks = r.fallbacks
	r.mu.RUnlock()
	return rep
}

// percentile calculates the p-th percentile from a sorted slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower]*(1-frac) + sorted[upper]*frac
}
