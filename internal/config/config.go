// Package config defines the daemon-wide Config spec.md §6 names, built
// the way sixafter/prng-chacha's config.go builds its Config: a plain
// struct populated by DefaultConfig and mutated only through functional
// Options. The CLI layer (cmd/csprngd) is responsible for turning
// cobra/viper input into Options; this package knows nothing about
// flags, env vars, or files.
package config

import "time"

// Config holds every tunable spec.md §6 recognizes.
type Config struct {
	// PredictionResistant enables per-iteration hardware-entropy mixing.
	// Default false.
	PredictionResistant bool

	// PipeName is the output channel location. Default /tmp/csprng.
	PipeName string

	// SeedSource is the entropy channel location. Default /tmp/randentropy.
	SeedSource string

	// ReseedInterval is the minimum gap between reseeds per worker.
	// Default 200ms.
	ReseedInterval time.Duration

	// RNGThreads is the number of generator workers, N. Default 1.
	RNGThreads int

	// EmitKeyMaterial is the insecure backdoor mode switch (spec.md §4.5).
	// Default false. Never set this true outside of a deliberate,
	// documented demonstration of the backdoor.
	EmitKeyMaterial bool

	// DumpFile, when non-empty, is a path the pump additionally appends
	// one base64 line per published block to, for offline analysis with
	// cmd/csprng-attack (SPEC_FULL.md §12 item 2). Default disabled.
	DumpFile string
}

// Default tunable values, named per spec.md §6.
const (
	defaultPipeName       = "/tmp/csprng"
	defaultSeedSource     = "/tmp/randentropy"
	defaultReseedInterval = 200 * time.Millisecond
	defaultRNGThreads     = 1
)

// DefaultConfig returns the documented defaults from spec.md §6.
func DefaultConfig() Config {
	return Config{
		PredictionResistant: false,
		PipeName:            defaultPipeName,
		SeedSource:          defaultSeedSource,
		ReseedInterval:      defaultReseedInterval,
		RNGThreads:          defaultRNGThreads,
		EmitKeyMaterial:     false,
	}
}

// Option customizes a Config produced by DefaultConfig.
type Option func(*Config)

// WithPredictionResistant toggles hardware-entropy mixing.
func WithPredictionResistant(enable bool) Option {
	return func(c *Config) { c.PredictionResistant = enable }
}

// WithPipeName sets the output channel path.
func WithPipeName(path string) Option {
	return func(c *Config) { c.PipeName = path }
}

// WithSeedSource sets the entropy channel path.
func WithSeedSource(path string) Option {
	return func(c *Config) { c.SeedSource = path }
}

// WithReseedInterval sets the minimum per-worker reseed gap.
func WithReseedInterval(d time.Duration) Option {
	return func(c *Config) { c.ReseedInterval = d }
}

// WithRNGThreads sets the number of generator workers.
func WithRNGThreads(n int) Option {
	return func(c *Config) { c.RNGThreads = n }
}

// WithEmitKeyMaterial toggles the insecure backdoor publication mode.
// See spec.md §4.5: this must remain an explicit, documented switch, not
// a silent default.
func WithEmitKeyMaterial(enable bool) Option {
	return func(c *Config) { c.EmitKeyMaterial = enable }
}

// WithDumpFile sets the path the pump additionally appends published
// blocks to, base64-encoded, one per line. Empty disables it.
func WithDumpFile(path string) Option {
	return func(c *Config) { c.DumpFile = path }
}

// New builds a Config from DefaultConfig with opts applied in order.
func New(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
