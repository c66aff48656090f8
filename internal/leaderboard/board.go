// Package leaderboard tracks model latencies and ranks models by speed.
package leaderboard

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// observation is one (model, latency) data point taken after an inference
// completed.
type observation struct {
	model      string
	task       string
	latency    float64 // seconds
	recordedAt time.Time
}

// Entry is one aggregated leaderboard row.
type Entry struct {
	Model                 string  `json:"model"`
	AverageLatencySeconds float64 `json:"average_latency"`
	Runs                  int     `json:"runs"`
}

// RunEntry is a single observed run, used for the fastest-run view.
type RunEntry struct {
	Model          string  `json:"model_name"`
	LatencySeconds float64 `json:"latency"`
	Task           string  `json:"task"`
}

// ModelStats summarizes all observations for one model.
type ModelStats struct {
	Count        int     `json:"count"`
	TotalLatency float64 `json:"total_latency"`
	MinLatency   float64 `json:"min_latency"`
	MaxLatency   float64 `json:"max_latency"`
	AvgLatency   float64 `json:"avg_latency"`
}

// Board owns the observation log. It is safe for concurrent use; views are
// pure projections over the log, recomputed per call, so a reader always
// sees a consistent snapshot.
type Board struct {
	mu  sync.RWMutex
	obs []observation
	now func() time.Time
}

// New returns an empty Board.
func New() *Board {
	return &Board{now: time.Now}
}

// Record appends one observation. Latency is in seconds and must be
// non-negative; a negative value is rejected without touching the log.
// Empty or unknown model names are accepted and grouped as their own entry.
func (b *Board) Record(model string, latency float64) error {
	return b.RecordTask(model, "", latency)
}

// RecordTask appends one observation tagged with the task it came from.
func (b *Board) RecordTask(model, task string, latency float64) error {
	if latency < 0 {
		return fmt.Errorf("leaderboard: negative latency %v for model %q", latency, model)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.obs = append(b.obs, observation{
		model:      model,
		task:       task,
		latency:    latency,
		recordedAt: b.now(),
	})
	return nil
}

// Rankings aggregates all observations per model: average latency ascending,
// ties broken by model name. An empty log yields an empty slice.
func (b *Board) Rankings() []Entry {
	return b.RankingsForTask("")
}

// RankingsForTask is Rankings restricted to observations for one task.
// An empty task means no filter.
func (b *Board) RankingsForTask(task string) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	type agg struct {
		total float64
		runs  int
	}
	byModel := make(map[string]*agg)
	for _, o := range b.obs {
		if task != "" && o.task != task {
			continue
		}
		a := byModel[o.model]
		if a == nil {
			a = &agg{}
			byModel[o.model] = a
		}
		a.total += o.latency
		a.runs++
	}

	entries := make([]Entry, 0, len(byModel))
	for model, a := range byModel {
		entries = append(entries, Entry{
			Model:                 model,
			AverageLatencySeconds: a.total / float64(a.runs),
			Runs:                  a.runs,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].AverageLatencySeconds != entries[j].AverageLatencySeconds {
			return entries[i].AverageLatencySeconds < entries[j].AverageLatencySeconds
		}
		return entries[i].Model < entries[j].Model
	})
	return entries
}

// Fastest returns the single fastest run per model, ascending, capped at
// limit. A non-positive limit means no cap.
func (b *Board) Fastest(limit int) []RunEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	best := make(map[string]observation)
	for _, o := range b.obs {
		cur, seen := best[o.model]
		if !seen || o.latency < cur.latency {
			best[o.model] = o
		}
	}

	runs := make([]RunEntry, 0, len(best))
	for _, o := range best {
		runs = append(runs, RunEntry{Model: o.model, LatencySeconds: o.latency, Task: o.task})
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].LatencySeconds != runs[j].LatencySeconds {
			return runs[i].LatencySeconds < runs[j].LatencySeconds
		}
		return runs[i].Model < runs[j].Model
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs
}

// Stats returns per-model latency statistics over all observations.
func (b *Board) Stats() map[string]ModelStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	stats := make(map[string]ModelStats)
	for _, o := range b.obs {
		s, seen := stats[o.model]
		if !seen {
			s.MinLatency = math.Inf(1)
		}
		s.Count++
		s.TotalLatency += o.latency
		s.MinLatency = math.Min(s.MinLatency, o.latency)
		s.MaxLatency = math.Max(s.MaxLatency, o.latency)
		stats[o.model] = s
	}
	for model, s := range stats {
		s.AvgLatency = s.TotalLatency / float64(s.Count)
		stats[model] = s
	}
	return stats
}

// Len reports the number of observations in the log.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.obs)
}

// Prune drops observations older than the retention window and reports how
// many were removed. A non-positive window removes nothing.
func (b *Board) Prune(olderThan time.Duration) int {
	if olderThan <= 0 {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-olderThan)
	kept := b.obs[:0]
	for _, o := range b.obs {
		if !o.recordedAt.Before(cutoff) {
			kept = append(kept, o)
		}
	}
	removed := len(b.obs) - len(kept)
	b.obs = kept
	return removed
}
