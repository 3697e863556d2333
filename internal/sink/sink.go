// Package sink implements the output pump of spec.md §4.4: it drains the
// data queue and writes blocks to a persistent named byte channel (a
// POSIX FIFO), recovering from transient write failure by closing and
// later reopening the sink. The reopen loop blocks until a consumer
// attaches, exactly as spec.md §5 allows.
//
// The re-architected design spec.md §9 calls for — "an explicit sink
// state variable, Open(fd) or Closed, with transitions on write-error and
// reopen-success" — replaces the original's "re-open on any exception"
// control flow; that state machine is the sinkState type below.
package sink

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/bentasker/csprng-experimentation/internal/queue"
	"golang.org/x/sys/unix"
)

// reopenBackoff is how long the pump waits between failed reopen
// attempts, and how long it idles when the data queue is momentarily
// empty (spec.md §4.4 step 2, "backoff briefly and continue").
const reopenBackoff = 200 * time.Millisecond

// fifoMode grants owner read/write only, per spec.md §6 ("created by the
// pump if absent, with owner read/write permission").
const fifoMode = 0o600

// statsInterval is how often the pump logs its throughput and sink
// state, per SPEC_FULL.md §12 item 3.
const statsInterval = 5 * time.Second

// sinkState is the pump's explicit open/closed transition, replacing
// exception-driven reopen logic.
type sinkState int

const (
	stateClosed sinkState = iota
	stateOpen
)

func (s sinkState) String() string {
	if s == stateOpen {
		return "open"
	}
	return "closed"
}

// Pump drains a data queue and writes blocks, in order, to a named FIFO.
// When dumpFile is non-nil, every block written to the FIFO is also
// appended there as a base64 line, the format csprng-attack's readDump
// expects — a separate artifact kept off the FIFO itself, since spec.md
// §6 requires FIFO consumers to treat the stream as opaque and never
// rely on block boundaries.
type Pump struct {
	path  string
	dataQ *queue.Queue[[]byte]
	log   *slog.Logger

	state sinkState
	file  *os.File

	dumpFile *os.File

	lastStats time.Time
	bytesSeen uint64
}

// New constructs a Pump bound to path, creating the FIFO at path if it
// does not already exist. If dumpPath is non-empty, every published
// block is additionally appended there as a base64 line for offline
// analysis (SPEC_FULL.md §12 item 2), mirroring csprng.py's debug writer
// at the bottom of its main().
func New(path string, dataQ *queue.Queue[[]byte], log *slog.Logger, dumpPath string) (*Pump, error) {
	if err := ensureFIFO(path); err != nil {
		return nil, err
	}

	var dumpFile *os.File
	if dumpPath != "" {
		f, err := os.OpenFile(dumpPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("sink: open dump file %s: %w", dumpPath, err)
		}
		dumpFile = f
	}

	return &Pump{
		path:      path,
		dataQ:     dataQ,
		log:       log,
		state:     stateClosed,
		dumpFile:  dumpFile,
		lastStats: time.Now(),
	}, nil
}

// ensureFIFO creates a POSIX FIFO at path if nothing exists there yet,
// matching spec.md §4.4 step 0 ("Ensure the named output channel exists").
func ensureFIFO(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("sink: stat %s: %w", path, err)
	}

	if err := unix.Mkfifo(path, fifoMode); err != nil {
		return fmt.Errorf("sink: mkfifo %s: %w", path, err)
	}
	return nil
}

// Run drains the data queue and writes to the sink until ctx is
// cancelled. On shutdown the pump does not wait for the generator;
// whatever is still queued is simply left behind, per spec.md §5.
func (p *Pump) Run(ctx context.Context) error {
	defer p.closeQuiet()
	defer func() {
		if p.dumpFile != nil {
			_ = p.dumpFile.Close()
		}
	}()

	var pending []byte

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		p.maybeLogStats()

		if p.state == stateClosed {
			if err := p.open(ctx); err != nil {
				return err
			}
		}

		if pending == nil {
			block, ok := p.dataQ.PopWait(reopenBackoff)
			if !ok {
				continue
			}
			pending = block
		}

		if _, err := p.file.Write(pending); err != nil {
			p.log.Warn("sink write failed, closing for reopen", "error", err)
			p.closeQuiet()
			continue
		}

		p.bytesSeen += uint64(len(pending))
		if p.dumpFile != nil {
			p.writeDump(pending)
		}
		pending = nil
	}
}

// writeDump appends block to the dump file as a base64 line. Failures
// are logged and otherwise ignored: the dump file is a diagnostic
// side-channel, never allowed to interrupt FIFO delivery (spec.md §7's
// isolation rule applied to this secondary output).
func (p *Pump) writeDump(block []byte) {
	line := base64.StdEncoding.EncodeToString(block) + "\n"
	if _, err := p.dumpFile.WriteString(line); err != nil {
		p.log.Warn("dump file write failed", "error", err)
	}
}

// maybeLogStats emits the periodic throughput/state line SPEC_FULL.md
// §12 item 3 promises, at most once per statsInterval.
func (p *Pump) maybeLogStats() {
	elapsed := time.Since(p.lastStats)
	if elapsed < statsInterval {
		return
	}

	bytesPerSec := float64(p.bytesSeen) / elapsed.Seconds()
	p.log.Info("sink stats", "bytes_per_sec", bytesPerSec, "sink_state", p.state.String())

	p.bytesSeen = 0
	p.lastStats = time.Now()
}

// open blocks until a consumer attaches to the FIFO for reading, exactly
// as spec.md §4.4 describes ("the open itself blocks until a consumer
// attaches").
func (p *Pump) open(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		f, err := os.OpenFile(p.path, os.O_WRONLY, 0)
		if err != nil {
			p.log.Debug("sink open failed, retrying", "error", err)
			time.Sleep(reopenBackoff)
			continue
		}
		p.file = f
		p.state = stateOpen
		return nil
	}
}

func (p *Pump) closeQuiet() {
	if p.state == stateOpen && p.file != nil {
		_ = p.file.Close()
	}
	p.file = nil
	p.state = stateClosed
}
