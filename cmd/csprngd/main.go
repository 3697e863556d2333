// Command csprngd runs the generator daemon described in spec.md §2: one
// or more generator workers feeding a bounded data queue, a seed
// refresher feeding a bounded seed queue, and a single output pump
// draining the data queue to a named FIFO.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/bentasker/csprng-experimentation/internal/config"
	"github.com/bentasker/csprng-experimentation/internal/entropy"
	"github.com/bentasker/csprng-experimentation/internal/generator"
	"github.com/bentasker/csprng-experimentation/internal/queue"
	"github.com/bentasker/csprng-experimentation/internal/refresher"
	"github.com/bentasker/csprng-experimentation/internal/seedsource"
	"github.com/bentasker/csprng-experimentation/internal/sink"
)

// shutdownGrace bounds how long components are given to unwind after the
// context is cancelled before the process exits anyway.
const shutdownGrace = time.Second

// queueCapacity is the bound applied to both the seed queue and the data
// queue (spec.md §9's drop-oldest abstraction needs a fixed capacity).
const queueCapacity = 100

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	root := newRootCmd(log)
	if err := root.Execute(); err != nil {
		log.Error("csprngd exiting", "error", err)
		os.Exit(exitCodeFor(err))
	}
}

func newRootCmd(log *slog.Logger) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "csprngd",
		Short: "Run the experimental cryptographically-seeded byte generator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.New(
				config.WithPredictionResistant(v.GetBool("prediction_resistant")),
				config.WithPipeName(v.GetString("pipe_name")),
				config.WithSeedSource(v.GetString("seed_source")),
				config.WithReseedInterval(time.Duration(v.GetFloat64("reseed_interval")*float64(time.Second))),
				config.WithRNGThreads(v.GetInt("rng_threads")),
				config.WithEmitKeyMaterial(v.GetBool("emit_key_material")),
				config.WithDumpFile(v.GetString("dump_file")),
			)
			return run(cmd.Context(), cfg, log)
		},
	}

	flags := cmd.Flags()
	flags.Bool("prediction-resistant", false, "mix hardware entropy into state every iteration")
	flags.String("pipe-name", "/tmp/csprng", "output channel path")
	flags.String("seed-source", "/tmp/randentropy", "entropy channel path")
	flags.Float64("reseed-interval", 0.2, "minimum seconds between reseeds per worker")
	flags.Int("rng-threads", 1, "number of generator workers")
	flags.Bool("emit-key-material", false, "publish interleaved key material (insecure, demonstration only)")
	flags.String("dump-file", "", "path to append base64-encoded published blocks to, for offline analysis with csprng-attack")

	_ = v.BindPFlag("prediction_resistant", flags.Lookup("prediction-resistant"))
	_ = v.BindPFlag("pipe_name", flags.Lookup("pipe-name"))
	_ = v.BindPFlag("seed_source", flags.Lookup("seed-source"))
	_ = v.BindPFlag("reseed_interval", flags.Lookup("reseed-interval"))
	_ = v.BindPFlag("rng_threads", flags.Lookup("rng-threads"))
	_ = v.BindPFlag("emit_key_material", flags.Lookup("emit-key-material"))
	_ = v.BindPFlag("dump_file", flags.Lookup("dump-file"))

	v.SetEnvPrefix("csprngd")
	v.AutomaticEnv()

	return cmd
}

// exitCode classifies a fatal run() error per spec.md §6.
type exitCode struct {
	code int
	err  error
}

func (e *exitCode) Error() string { return e.err.Error() }
func (e *exitCode) Unwrap() error { return e.err }

func exitCodeFor(err error) int {
	var ec *exitCode
	if errors.As(err, &ec) {
		return ec.code
	}
	return 1
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	seeder := seedsource.New(cfg.SeedSource)
	initialSeed, err := seeder.Read()
	if err != nil {
		return &exitCode{code: 1, err: fmt.Errorf("initial seed read: %w", err)}
	}

	if cfg.RNGThreads <= 0 {
		return &exitCode{code: 2, err: fmt.Errorf("rng_threads must be positive, got %d", cfg.RNGThreads)}
	}

	seedQ := queue.New[[]byte](queueCapacity)
	dataQ := queue.New[[]byte](queueCapacity)
	ep := entropy.New(cfg.PredictionResistant, log)

	genCfg := generator.Config{
		Iter:                generator.DefaultIter,
		PredictionResistant: cfg.PredictionResistant,
		EmitKeyMaterial:     cfg.EmitKeyMaterial,
		ReseedInterval:      cfg.ReseedInterval,
	}

	pump, err := sink.New(cfg.PipeName, dataQ, log.With("component", "sink"), cfg.DumpFile)
	if err != nil {
		return &exitCode{code: 2, err: fmt.Errorf("sink init: %w", err)}
	}

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < cfg.RNGThreads; i++ {
		seed := initialSeed
		if i > 0 {
			// Each worker owns its State exclusively (spec.md §5); derive
			// an independent initial seed per worker rather than sharing
			// the first one outright.
			seed, err = seeder.Read()
			if err != nil {
				log.Warn("per-worker seed read failed, reusing initial seed", "worker", i, "error", err)
				seed = initialSeed
			}
		}
		w := generator.NewWorker(i, genCfg, seed, seedQ, dataQ, ep, log.With("component", "generator", "worker", i))
		g.Go(func() error { return w.Run(gctx) })
	}

	refr := refresher.New(seeder, seedQ, cfg.ReseedInterval, log.With("component", "refresher"))
	g.Go(func() error { return refr.Run(gctx) })

	g.Go(func() error { return pump.Run(gctx) })

	g.Go(func() error { return queueDepthLoop(gctx, dataQ, log.With("component", "queue")) })

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		select {
		case err = <-done:
		case <-time.After(shutdownGrace):
			log.Warn("shutdown grace period elapsed before all components stopped")
		}
	}

	if ctx.Err() != nil {
		log.Info("shutdown complete")
		return nil
	}
	return err
}

// queueDepthLoop periodically logs a human-readable data-queue depth
// line, grounded on the teacher's use of go-humanize for operator-facing
// summaries. Throughput, reseed count, and sink state are logged by the
// pump and refresher themselves (see internal/sink, internal/refresher).
func queueDepthLoop(ctx context.Context, dataQ *queue.Queue[[]byte], log *slog.Logger) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			log.Info("queue depth",
				"data_queue", fmt.Sprintf("%s / %s", humanize.Comma(int64(dataQ.Len())), humanize.Comma(int64(dataQ.Cap()))),
			)
		}
	}
}

