// Package entropy supplies the optional prediction-resistance mixing
// source described in spec.md §6. It records whether the CPU offers a
// hardware RNG instruction and logs the weaker mode when it does not; in
// both cases the bytes themselves come from crypto/rand. Dispatch is
// resolved once, at construction, and never re-checked per call — the
// re-architected "polymorphic over an entropy provider capability" note
// in spec.md §9.
package entropy

import (
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sys/cpu"
)

// Mode identifies which underlying source a Provider resolved to.
type Mode int

const (
	// Disabled means prediction resistance is off; Provider.Fetch is
	// never called in this mode.
	Disabled Mode = iota
	// HardwareRNG means the CPU reports RDRAND support. Fetch does not
	// execute RDRAND itself; it reads crypto/rand in this mode as well.
	HardwareRNG
	// OSFallback means crypto/rand backs Fetch because no hardware
	// instruction was available. This is logged as a weaker-than-intended
	// mode per spec.md §6.
	OSFallback
)

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case HardwareRNG:
		return "hardware-rng"
	case OSFallback:
		return "os-fallback"
	default:
		return "unknown"
	}
}

// Provider yields fixed-size bursts of entropy for prediction-resistance
// mixing. It is resolved once at construction and is safe for concurrent
// use by independent generator workers, each of which calls Fetch on its
// own goroutine.
type Provider struct {
	mode Mode
}

// New resolves a Provider. If enabled is false the returned Provider is in
// Disabled mode and Fetch must not be called. If enabled is true, New
// prefers the CPU's RDRAND instruction (detected via golang.org/x/sys/cpu)
// and falls back to crypto/rand, logging the weaker mode via log.
func New(enabled bool, log *slog.Logger) *Provider {
	if !enabled {
		return &Provider{mode: Disabled}
	}
	if cpu.X86.HasRDRAND {
		return &Provider{mode: HardwareRNG}
	}
	if log != nil {
		log.Warn("prediction resistance requested but RDRAND unavailable, using OS CSPRNG instead")
	}
	return &Provider{mode: OSFallback}
}

// Mode reports which source this Provider resolved to.
func (p *Provider) Mode() Mode { return p.mode }

// Fetch returns n fresh entropy bytes. It must only be called when Mode()
// is not Disabled.
func (p *Provider) Fetch(n int) ([]byte, error) {
	if p.mode == Disabled {
		panic("entropy: Fetch called on a disabled provider")
	}
	buf := make([]byte, n)
	// RDRAND does not have a convenient Go intrinsic in the standard
	// toolchain outside of crypto/rand's own internal use; crypto/rand.Reader
	// already draws from the platform's best available source (including
	// RDSEED/RDRAND on amd64 via the runtime), so both modes read through
	// it — the distinction recorded in Mode() exists to make the weaker
	// fallback path observable and loggable, per spec.md §6.
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("entropy: fetch %d bytes: %w", n, err)
	}
	return buf, nil
}
