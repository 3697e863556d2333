package streamcipher

import (
	"testing"

	"github.com/google/uuid"
)

// benchReader adapts Stream into an io.Reader so uuid.SetRand can draw
// keystream bytes from it. It exists only to exercise this package's
// throughput under a realistic consumer, the way the teacher's own
// uuid_benchmark_test.go compares its Reader against the default source.
type benchReader struct {
	key     []byte
	nonce   []byte
	counter uint64
}

func newBenchReader() *benchReader {
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return &benchReader{key: key, nonce: make([]byte, NonceSize)}
}

func (r *benchReader) Read(p []byte) (int, error) {
	for off := 0; off < len(p); off += KeySize {
		r.counter++
		for i := 0; i < NonceSize; i++ {
			r.nonce[NonceSize-1-i] = byte(r.counter >> (8 * i))
		}
		block := Stream(r.key, r.nonce, make([]byte, KeySize))
		copy(p[off:], block)
	}
	return len(p), nil
}

func BenchmarkUUID_v4_Default_Serial(b *testing.B) {
	uuid.SetRand(nil)
	b.ReportAllocs()
	for b.Loop() {
		_ = uuid.New()
	}
}

func BenchmarkUUID_v4_CSPRNG_Serial(b *testing.B) {
	r := newBenchReader()
	uuid.SetRand(r)
	defer uuid.SetRand(nil)
	b.ReportAllocs()
	for b.Loop() {
		_ = uuid.New()
	}
}

func BenchmarkUUID_v4_CSPRNG_Parallel(b *testing.B) {
	r := newBenchReader()
	uuid.SetRand(r)
	defer uuid.SetRand(nil)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = uuid.New()
		}
	})
}
