package generator

import (
	"context"
	"log/slog"
	"time"

	"github.com/bentasker/csprng-experimentation/internal/entropy"
	"github.com/bentasker/csprng-experimentation/internal/queue"
)

// reseedPopTimeout bounds how long a worker waits for a seed on the
// reseed queue before giving up for this round, per spec.md §4.2 step 5
// ("a short bounded wait (≤100 ms)").
const reseedPopTimeout = 100 * time.Millisecond

// Worker owns one State exclusively and repeatedly expands it into
// output, publishing each round's bytes to dataQ and periodically
// draining seedQ to reseed. It never shares its State with any other
// goroutine, matching spec.md §5.
type Worker struct {
	id      int
	cfg     Config
	state   *State
	seedQ   *queue.Queue[[]byte]
	dataQ   *queue.Queue[[]byte]
	entropy *entropy.Provider
	log     *slog.Logger
}

// NewWorker constructs a Worker seeded from seed (exactly 64 bytes, spec.md
// §3). seedQ and dataQ are shared with the rest of the process; ep
// supplies prediction-resistance entropy when cfg.PredictionResistant is
// set.
func NewWorker(id int, cfg Config, seed []byte, seedQ, dataQ *queue.Queue[[]byte], ep *entropy.Provider, log *slog.Logger) *Worker {
	return &Worker{
		id:      id,
		cfg:     cfg,
		state:   NewState(seed),
		seedQ:   seedQ,
		dataQ:   dataQ,
		entropy: ep,
		log:     log,
	}
}

// Run drives the worker's round loop until ctx is cancelled. Each
// iteration performs one round, publishes its output, and then checks
// for a pending reseed — the reseed never crosses a round boundary
// (spec.md §5). A cipher precondition violation inside expand is fatal
// and propagates as a panic, matching spec.md §4.2 ("Failure semantics").
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := w.round(); err != nil {
			return err
		}

		w.maybeReseed()
	}
}

// round performs one expansion, installs the resulting state, and
// publishes the round's output to the data queue, dropping the oldest
// queued block first if the queue is already full (spec.md §4.2 step 3).
func (w *Worker) round() error {
	result, err := expand(w.state, w.cfg, w.entropy)
	if err != nil {
		return err
	}

	out := publish(result.middle, w.cfg.EmitKeyMaterial)

	w.installResult(result)

	if _, evicted := w.dataQ.Push(out); evicted {
		w.log.Debug("data queue full, dropped oldest block", "worker", w.id)
	}
	return nil
}

// installResult replaces the worker's state with the outcome of a round,
// wiping the superseded key and spare in place per spec.md §5.
func (w *Worker) installResult(r *roundResult) {
	old := w.state

	next := &State{
		Key:        r.nextKey,
		PrevKey:    r.nextPrevKey,
		Input:      r.nextInput,
		Spare:      r.nextSpare,
		LastReseed: old.LastReseed,
	}

	for _, buf := range [][]byte{old.Key, old.PrevKey, old.Spare} {
		for i := range buf {
			buf[i] = 0
		}
	}

	w.state = next
}

// maybeReseed checks whether enough time has passed since the last
// reseed and, if so, attempts a bounded pop from the seed queue. The
// queue is inspected non-destructively first so a normally-empty queue
// never costs the worker a wait, per spec.md §4.3 ("The refresher never
// blocks the generator").
func (w *Worker) maybeReseed() {
	if time.Since(w.state.LastReseed) <= w.cfg.ReseedInterval {
		return
	}
	if !w.seedQ.Peek() {
		return
	}

	seed, ok := w.seedQ.PopWait(reseedPopTimeout)
	if !ok {
		w.log.Debug("reseed due but no seed available within bound", "worker", w.id)
		return
	}

	w.state.Reseed(seed, time.Now())
	for i := range seed {
		seed[i] = 0
	}
	w.log.Debug("worker reseeded", "worker", w.id)
}
