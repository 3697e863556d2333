// Package refresher implements the seed-refresh path of spec.md §4.3: on
// a cadence, fetch a fresh 64-byte seed from the entropy source and push
// it onto the seed queue, dropping the oldest entry on overflow. It never
// surfaces I/O errors upward, matching spec.md §7's isolation rule; this
// mirrors maruel/fortuna's accumulator.reseed, which likewise treats a
// failed read as something to log and move past, never to propagate.
package refresher

import (
	"context"
	"log/slog"
	"time"

	"github.com/bentasker/csprng-experimentation/internal/queue"
)

// statsInterval is how often the refresher logs its reseed count, per
// SPEC_FULL.md §12 item 3.
const statsInterval = 5 * time.Second

// Source is the external entropy channel described in spec.md §6: a
// blocking read that returns exactly 64 bytes or fails.
type Source interface {
	Read() ([]byte, error)
}

// Refresher periodically reads a seed from Source and pushes it onto a
// bounded drop-oldest queue shared with the generator workers.
type Refresher struct {
	source Source
	seedQ  *queue.Queue[[]byte]
	period time.Duration
	log    *slog.Logger

	reseedCount uint64
	lastStats   time.Time
}

// New constructs a Refresher that attempts one read every
// reseedInterval/2, per spec.md §4.3.
func New(source Source, seedQ *queue.Queue[[]byte], reseedInterval time.Duration, log *slog.Logger) *Refresher {
	return &Refresher{
		source:    source,
		seedQ:     seedQ,
		period:    reseedInterval / 2,
		log:       log,
		lastStats: time.Now(),
	}
}

// Run loops until ctx is cancelled, attempting one seed fetch per period.
// A failed fetch is logged and retried on the next tick; it is never
// fatal, per spec.md §7 taxonomy item 2 (transient I/O failures).
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.tick()
			r.maybeLogStats()
		}
	}
}

func (r *Refresher) tick() {
	seed, err := r.source.Read()
	if err != nil {
		r.log.Warn("seed refresh failed", "error", err)
		return
	}

	r.reseedCount++
	if _, evicted := r.seedQ.Push(seed); evicted {
		r.log.Debug("seed queue full, dropped oldest seed")
	}
}

// maybeLogStats emits the periodic reseed-count line SPEC_FULL.md §12
// item 3 promises, at most once per statsInterval.
func (r *Refresher) maybeLogStats() {
	if time.Since(r.lastStats) < statsInterval {
		return
	}
	r.log.Info("refresher stats", "reseed_count", r.reseedCount)
	r.lastStats = time.Now()
}
