package seedsource

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRead_Success(t *testing.T) {
	is := assert.New(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "seed")
	want := bytes.Repeat([]byte{0xab}, SeedSize)
	require.NoError(t, os.WriteFile(path, want, 0o600))

	s := New(path)
	got, err := s.Read()
	require.NoError(t, err)
	is.Equal(want, got)
}

func TestRead_ShortReadIsFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed")
	require.NoError(t, os.WriteFile(path, []byte("too short"), 0o600))

	s := New(path)
	_, err := s.Read()
	require.Error(t, err)
}

func TestRead_MissingSourceIsFailure(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist"))
	_, err := s.Read()
	require.Error(t, err)
}

// stubReadCloser lets tests exercise Source without touching the
// filesystem, by swapping in an alternate `open` implementation.
type stubReadCloser struct {
	io.Reader
}

func (stubReadCloser) Close() error { return nil }

func TestRead_UsesInjectedOpener(t *testing.T) {
	is := assert.New(t)

	s := New("ignored")
	want := bytes.Repeat([]byte{0x11}, SeedSize)
	s.open = func(string) (io.ReadCloser, error) {
		return stubReadCloser{bytes.NewReader(want)}, nil
	}

	got, err := s.Read()
	require.NoError(t, err)
	is.Equal(want, got)
}
