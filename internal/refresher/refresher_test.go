package refresher

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bentasker/csprng-experimentation/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	n       atomic.Int64
	failEvery int
}

func (f *fakeSource) Read() ([]byte, error) {
	n := f.n.Add(1)
	if f.failEvery > 0 && int(n)%f.failEvery == 0 {
		return nil, errors.New("fake failure")
	}
	return make([]byte, 64), nil
}

func TestRefresher_PushesSeeds(t *testing.T) {
	is := assert.New(t)

	seedQ := queue.New[[]byte](4)
	src := &fakeSource{}
	r := New(src, seedQ, 20*time.Millisecond, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	_ = r.Run(ctx)
	is.Greater(seedQ.Len(), 0)
}

func TestRefresher_SurvivesFetchFailures(t *testing.T) {
	seedQ := queue.New[[]byte](4)
	src := &fakeSource{failEvery: 2}
	r := New(src, seedQ, 10*time.Millisecond, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	err := r.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRefresher_DropsOldestOnFullQueue(t *testing.T) {
	is := assert.New(t)

	seedQ := queue.New[[]byte](1)
	seedQ.Push([]byte("stale"))

	src := &fakeSource{}
	r := New(src, seedQ, 1, slog.New(slog.DiscardHandler))
	r.tick()

	is.Equal(1, seedQ.Len())
	v, ok := seedQ.TryPop()
	require.True(t, ok)
	is.NotEqual([]byte("stale"), v)
}

func TestRefresher_TracksReseedCount(t *testing.T) {
	is := assert.New(t)

	seedQ := queue.New[[]byte](4)
	src := &fakeSource{}
	r := New(src, seedQ, 1, slog.New(slog.DiscardHandler))

	r.tick()
	r.tick()
	r.tick()

	is.Equal(uint64(3), r.reseedCount)
	r.maybeLogStats() // must not panic with no stats handler side effects
}
