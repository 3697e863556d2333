// Package generator implements the core expansion function: it turns a
// (key, state) pair into a large block of output, derives the next
// internal key, performs the in-round key mutation spec.md §3 describes,
// and coordinates reseeding and publication to the data queue. This is
// "the core" named in spec.md §1; one Worker owns one GeneratorState
// exclusively, mirroring maruel/fortuna's generator (a single struct,
// guarded by its own lock, never shared across goroutines) and
// sixafter/prng-chacha's pattern of keeping cryptographic state private
// to one owner.
package generator

import (
	"time"

	"github.com/bentasker/csprng-experimentation/internal/streamcipher"
)

// BlockSize is the width, in bytes, of every block the round expansion
// produces — key, prevKey, state and keystr are all this size, per the
// canonical 32-byte reconciliation spec.md §4.2 calls for.
const BlockSize = streamcipher.KeySize

// State is the internal (key, state) pair a single worker owns
// exclusively between rounds. It is never shared across workers; each
// worker's copy is private, matching spec.md §5 ("GeneratorState: never
// shared across workers.").
type State struct {
	Key       []byte // current cipher key, BlockSize bytes
	PrevKey   []byte // key in effect at the start of the previous round
	Input     []byte // the evolving "state" fed to the cipher each round
	Spare     []byte // carried mutation material; nil before the first round
	LastReseed time.Time
}

// NewState splits a 64-byte seed into the initial key (first 32 bytes)
// and initial state (last 32 bytes), per spec.md §3: "Split on use into a
// 32-byte initial key and a 32-byte initial state." PrevKey starts as
// all-zero and Spare starts absent, matching a freshly seeded worker that
// has not yet completed a round.
func NewState(seed []byte) *State {
	if len(seed) != 64 {
		panic("generator: seed must be 64 bytes")
	}
	key := make([]byte, BlockSize)
	copy(key, seed[:BlockSize])
	input := make([]byte, BlockSize)
	copy(input, seed[BlockSize:])

	return &State{
		Key:        key,
		PrevKey:    make([]byte, BlockSize), // all-zero
		Input:      input,
		Spare:      nil,
		LastReseed: time.Now(),
	}
}

// Reseed atomically replaces Key and Input from a fresh 64-byte seed and
// resets PrevKey to zero and Spare to absent, per spec.md §3 invariant 7.
// The superseded key material is wiped, not merely dropped, per spec.md
// §5's zeroization requirement.
func (s *State) Reseed(seed []byte, now time.Time) {
	if len(seed) != 64 {
		panic("generator: seed must be 64 bytes")
	}

	streamcipher.Wipe(s.Key)
	streamcipher.Wipe(s.PrevKey)
	if s.Spare != nil {
		streamcipher.Wipe(s.Spare)
	}

	key := make([]byte, BlockSize)
	copy(key, seed[:BlockSize])
	input := make([]byte, BlockSize)
	copy(input, seed[BlockSize:])

	s.Key = key
	s.PrevKey = make([]byte, BlockSize)
	s.Input = input
	s.Spare = nil
	s.LastReseed = now
}
