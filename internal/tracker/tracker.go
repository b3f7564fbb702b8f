// Package tracker keeps per-model performance counters fed by every dispatch
// and a bounded log of routing decisions. Both live for the process lifetime.
package tracker

import (
	"sort"
	"sync"
	"time"
)

// Record holds the raw counters of one model. Successes never exceed Attempts.
// Time and tokens accumulate on successful calls only.
type Record struct {
	Attempts         int     `json:"attempts"`
	Successes        int     `json:"successes"`
	TotalTimeSeconds float64 `json:"total_time_seconds"`
	TotalTokens      int     `json:"total_tokens"`
}

// SuccessRate returns Successes/Attempts, or 0 with no attempts.
func (r Record) SuccessRate() float64 {
	if r.Attempts == 0 {
		return 0
	}
	return float64(r.Successes) / float64(r.Attempts)
}

// AvgTime returns the mean latency of successful calls in seconds.
func (r Record) AvgTime() float64 {
	if r.Successes == 0 {
		return 0
	}
	return r.TotalTimeSeconds / float64(r.Successes)
}

// AvgTokensPerSec returns generated tokens per second across successful calls.
func (r Record) AvgTokensPerSec() float64 {
	if r.TotalTimeSeconds <= 0 {
		return 0
	}
	return float64(r.TotalTokens) / r.TotalTimeSeconds
}

// Stats is the derived, serializable view of a Record.
type Stats struct {
	Attempts        int     `json:"attempts"`
	Successes       int     `json:"successes"`
	SuccessRate     float64 `json:"success_rate"`
	AvgTimeSeconds  float64 `json:"avg_time_seconds"`
	AvgTokensPerSec float64 `json:"avg_tokens_per_sec"`
}

// Stats derives the serializable view.
func (r Record) Stats() Stats {
	return Stats{
		Attempts:        r.Attempts,
		Successes:       r.Successes,
		SuccessRate:     r.SuccessRate(),
		AvgTimeSeconds:  r.AvgTime(),
		AvgTokensPerSec: r.AvgTokensPerSec(),
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// TRACKER
// ═══════════════════════════════════════════════════════════════════════════════

// Tracker aggregates dispatch outcomes per model. The map is guarded by an
// RWMutex and each record by its own mutex, so concurrent reports for
// different models never contend and reports for one model are never lost.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*entry
}

type entry struct {
	mu  sync.Mutex
	rec Record
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{records: make(map[string]*entry)}
}

// Report records one dispatch outcome for model.
func (t *Tracker) Report(model string, success bool, elapsed time.Duration, tokens int) {
	e := t.entry(model)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.rec.Attempts++
	if success {
		e.rec.Successes++
		e.rec.TotalTimeSeconds += elapsed.Seconds()
		if tokens > 0 {
			e.rec.TotalTokens += tokens
		}
	}
}

func (t *Tracker) entry(model string) *entry {
	t.mu.RLock()
	e, ok := t.records[model]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.records[model]; !ok {
		e = &entry{}
		t.records[model] = e
	}
	return e
}

// SuccessRate returns the model's success rate, or 0 if it has no record.
func (t *Tracker) SuccessRate(model string) float64 {
	rec, _ := t.Record(model)
	return rec.SuccessRate()
}

// Record returns a copy of the model's counters.
func (t *Tracker) Record(model string) (Record, bool) {
	t.mu.RLock()
	e, ok := t.records[model]
	t.mu.RUnlock()
	if !ok {
		return Record{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec, true
}

// Models returns the names of all tracked models, sorted.
func (t *Tracker) Models() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.records))
	for name := range t.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns derived stats for every tracked model.
func (t *Tracker) Snapshot() map[string]Stats {
	out := make(map[string]Stats)
	for _, name := range t.Models() {
		if rec, ok := t.Record(name); ok {
			out[name] = rec.Stats()
		}
	}
	return out
}
