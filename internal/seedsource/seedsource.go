// Package seedsource reads 64-byte seeds from the external entropy
// source described in spec.md §6. The source itself (a named byte
// channel, typically a FIFO fed by another process) is out of scope per
// spec.md §1; this package only speaks the read-exactly-64-bytes
// contract and classifies short reads as failures.
package seedsource

import (
	"fmt"
	"io"
	"os"
)

// SeedSize is the number of bytes a single seed read must yield.
const SeedSize = 64

// Source reads one 64-byte seed at a time from a file-backed path. Each
// call to Read opens the path fresh, matching the original's os.open/
// os.read/os.close sequence per fetch — appropriate for a FIFO, which
// cannot usefully be held open across reads by a single reader without
// risking EOF the moment the writer detaches.
type Source struct {
	path string
	open func(path string) (io.ReadCloser, error)
}

// New returns a Source that reads 64-byte seeds from path.
func New(path string) *Source {
	return &Source{
		path: path,
		open: func(path string) (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// Read fetches exactly SeedSize bytes from the configured path. A short
// read is treated as a failure, matching spec.md §6 ("Short reads are a
// failure; the refresher retries.").
func (s *Source) Read() ([]byte, error) {
	f, err := s.open(s.path)
	if err != nil {
		return nil, fmt.Errorf("seedsource: open %s: %w", s.path, err)
	}
	defer f.Close()

	buf := make([]byte, SeedSize)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("seedsource: read %d bytes from %s: %w", SeedSize, s.path, err)
	}
	return buf, nil
}
