package generator

import "time"

// DefaultIter is the canonical even iteration constant spec.md §3 fixes
// at 24. A round runs Iter/2 cipher calls (spec.md §4.2); the key
// mutation fires at cipher call Iter/4.
const DefaultIter = 24

// Config carries the per-worker tunables a Round needs. It holds no
// secrets and no mutable state; it is safe to share by value across
// workers, matching the re-architected "explicit configuration value
// carried into each component at construction" note in spec.md §9.
type Config struct {
	// Iter is the fixed even constant controlling round width. Canonical
	// value 24.
	Iter int

	// PredictionResistant enables per-iteration mixing of hardware (or
	// OS-fallback) entropy into the state before each cipher step,
	// spec.md §4.2 step 1.
	PredictionResistant bool

	// EmitKeyMaterial is the backdoor configuration switch spec.md §4.5
	// requires: when true, the published OutputBlock interleaves the
	// keystr mixing blocks alongside the state blocks (the insecure,
	// backtrackable mode the attack tooling in internal/backdoor relies
	// on). The secure default (false) publishes state blocks only.
	EmitKeyMaterial bool

	// ReseedInterval is the minimum gap between reseeds per worker,
	// spec.md §6 (default 0.2s).
	ReseedInterval time.Duration
}

// DefaultConfig returns the canonical generator configuration: Iter=24,
// prediction resistance and key-material emission both off, and a
// 200ms reseed interval, matching spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		Iter:                DefaultIter,
		PredictionResistant: false,
		EmitKeyMaterial:     false,
		ReseedInterval:      200 * time.Millisecond,
	}
}

// iterCalls returns the number of cipher calls executed per round: Iter/2,
// per spec.md §4.2.
func (c Config) iterCalls() int { return c.Iter / 2 }

// mutatePoint returns the 1-indexed cipher call at which key mutation
// fires: Iter/4, per spec.md §3 invariant 6.
func (c Config) mutatePoint() int { return c.Iter / 4 }
