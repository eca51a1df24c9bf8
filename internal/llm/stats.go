package llm

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	at         time.Time
	durationMs int64
}

// StatsSnapshot is a point-in-time aggregate of completion call latencies.
type StatsSnapshot struct {
	Count int     `json:"count"`
	MaxMs int64   `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
}

// CallStats keeps completion latencies inside a rolling window.
type CallStats struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewCallStats(maxAge time.Duration) *CallStats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &CallStats{samples: make([]sample, 0, 256), maxAge: maxAge}
}

func (s *CallStats) Record(durationMs int64) {
	if durationMs < 0 {
		durationMs = 0
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	s.samples = append(s.samples, sample{at: now, durationMs: durationMs})
}

func (s *CallStats) Snapshot() StatsSnapshot {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return StatsSnapshot{}
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationMs)
		sum += sm.durationMs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return StatsSnapshot{
		Count: len(values),
		MaxMs: values[len(values)-1],
		AvgMs: float64(sum) / float64(len(values)),
		P50Ms: percentile(values, 50),
		P95Ms: percentile(values, 95),
	}
}

func (s *CallStats) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	keep := 0
	for _, sm := range s.samples {
		if !sm.at.Before(cutoff) {
			s.samples[keep] = sm
			keep++
		}
	}
	s.samples = s.samples[:keep]
}

func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sorted[0])
	}
	if pct >= 100 {
		return float64(sorted[len(sorted)-1])
	}
	index := (float64(len(sorted)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return float64(sorted[lower])
	}
	weight := index - float64(lower)
	return float64(sorted[lower]) + (float64(sorted[upper])-float64(sorted[lower]))*weight
}
