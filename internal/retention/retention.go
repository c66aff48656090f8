// Package retention bounds the observation log and the stored records by
// age, so neither grows without limit over the life of the process.
package retention

import (
	"fmt"
	"log"
	"time"

	"github.com/pixelprobe/pixelprobe/internal/leaderboard"
	"github.com/pixelprobe/pixelprobe/internal/store"
	"github.com/robfig/cron/v3"
)

// Pruner runs a scheduled cleanup of leaderboard observations and inference
// records older than the retention window.
type Pruner struct {
	board  *leaderboard.Board
	store  *store.Store
	window time.Duration
	cron   *cron.Cron
}

// New builds a Pruner. A non-positive window disables pruning entirely:
// Start becomes a no-op and RunOnce removes nothing.
func New(board *leaderboard.Board, st *store.Store, window time.Duration) *Pruner {
	return &Pruner{board: board, store: st, window: window}
}

// Start schedules RunOnce on the given cron expression ("@every 10m",
// "0 3 * * *", ...). It returns immediately; jobs run on the cron's own
// goroutine until Stop is called.
func (p *Pruner) Start(schedule string) error {
	if p.window <= 0 {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, p.RunOnce); err != nil {
		return fmt.Errorf("retention: bad schedule %q: %w", schedule, err)
	}
	c.Start()
	p.cron = c
	return nil
}

// Stop halts the schedule. Safe to call when Start was never called.
func (p *Pruner) Stop() {
	if p.cron != nil {
		p.cron.Stop()
	}
}

// RunOnce prunes both stores immediately.
func (p *Pruner) RunOnce() {
	if p.window <= 0 {
		return
	}
	dropped := p.board.Prune(p.window)
	var removed int64
	if p.store != nil {
		var err error
		removed, err = p.store.PruneRecords(p.window)
		if err != nil {
			log.Printf("retention: prune records: %v", err)
		}
	}
	if dropped > 0 || removed > 0 {
		log.Printf("retention: pruned %d observations, %d records older than %v", dropped, removed, p.window)
	}
}
