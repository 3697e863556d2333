package sink

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bentasker/csprng-experimentation/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureFIFO_CreatesOnce(t *testing.T) {
	is := assert.New(t)

	path := filepath.Join(t.TempDir(), "out")
	require.NoError(t, ensureFIFO(path))

	fi, err := os.Stat(path)
	require.NoError(t, err)
	is.True(fi.Mode()&os.ModeNamedPipe != 0)

	// Calling again must not error (already exists).
	require.NoError(t, ensureFIFO(path))
}

func TestPump_WritesInOrderToConsumer(t *testing.T) {
	is := assert.New(t)

	path := filepath.Join(t.TempDir(), "out")
	dataQ := queue.New[[]byte](10)
	p, err := New(path, dataQ, slog.New(slog.DiscardHandler), "")
	require.NoError(t, err)

	dataQ.Push([]byte("first-"))
	dataQ.Push([]byte("second-"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = p.Run(ctx) }()

	// Give the pump a moment to block on open, then attach a reader.
	time.Sleep(20 * time.Millisecond)
	r, err := os.OpenFile(path, os.O_RDONLY, 0)
	require.NoError(t, err)

	buf := make([]byte, len("first-second-"))
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)
	is.Equal("first-second-", string(buf))

	cancel()
	r.Close()
}

// TestPump_ReopensAfterConsumerDisconnect covers spec.md §8 S6: closing
// the consumer mid-stream must not deadlock the pump, and once a new
// consumer attaches the pump must resume delivery, including the block
// that failed to write when the first consumer vanished.
func TestPump_ReopensAfterConsumerDisconnect(t *testing.T) {
	is := assert.New(t)

	path := filepath.Join(t.TempDir(), "out")
	dataQ := queue.New[[]byte](10)
	p, err := New(path, dataQ, slog.New(slog.DiscardHandler), "")
	require.NoError(t, err)

	dataQ.Push([]byte("first-"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	r1, err := os.OpenFile(path, os.O_RDONLY, 0)
	require.NoError(t, err)

	buf := make([]byte, len("first-"))
	_, err = io.ReadFull(r1, buf)
	require.NoError(t, err)
	is.Equal("first-", string(buf))

	// Disconnect the consumer, then queue a block while nobody is
	// reading: the pump's next write should fail (broken pipe), and it
	// must retain that block rather than drop it.
	require.NoError(t, r1.Close())
	dataQ.Push([]byte("second-"))

	// Give the pump a chance to observe the write failure and start
	// blocking on reopen before a new consumer attaches.
	time.Sleep(50 * time.Millisecond)

	r2, err := os.OpenFile(path, os.O_RDONLY, 0)
	require.NoError(t, err)
	defer r2.Close()

	buf2 := make([]byte, len("second-"))
	_, err = io.ReadFull(r2, buf2)
	require.NoError(t, err)
	is.Equal("second-", string(buf2))
}

// TestPump_WritesDumpFile covers SPEC_FULL.md §12 item 2: when a dump
// path is configured, every block the pump delivers is also appended
// there as a base64 line, in delivery order.
func TestPump_WritesDumpFile(t *testing.T) {
	is := assert.New(t)

	path := filepath.Join(t.TempDir(), "out")
	dumpPath := filepath.Join(t.TempDir(), "dump")
	dataQ := queue.New[[]byte](10)
	p, err := New(path, dataQ, slog.New(slog.DiscardHandler), dumpPath)
	require.NoError(t, err)

	dataQ.Push([]byte("alpha-"))
	dataQ.Push([]byte("beta--"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	r, err := os.OpenFile(path, os.O_RDONLY, 0)
	require.NoError(t, err)

	buf := make([]byte, len("alpha-beta--"))
	_, err = io.ReadFull(r, buf)
	require.NoError(t, err)

	cancel()
	r.Close()
	time.Sleep(20 * time.Millisecond)

	dumped, err := os.ReadFile(dumpPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(dumped), "\n"), "\n")
	require.Len(t, lines, 2)

	first, err := base64.StdEncoding.DecodeString(lines[0])
	require.NoError(t, err)
	is.Equal("alpha-", string(first))

	second, err := base64.StdEncoding.DecodeString(lines[1])
	require.NoError(t, err)
	is.Equal("beta--", string(second))
}
