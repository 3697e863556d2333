// Command csprng-attack reimplements attack_backdoor.py: given a dump of
// base64-encoded output lines captured while the daemon ran with
// --emit-key-material set, it recovers the in-effect key and walks
// backwards through the captured stream, printing each predicted block.
//
// This tool only works against the insecure publication mode (spec.md
// §4.5) and exists to demonstrate why that mode must never be the
// default.
package main

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bentasker/csprng-experimentation/internal/backdoor"
	"github.com/bentasker/csprng-experimentation/internal/generator"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var dumpFile string
	var maxIter int

	cmd := &cobra.Command{
		Use:   "csprng-attack",
		Short: "Recover key material from an insecure-mode output dump",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dumpFile == "" {
				return fmt.Errorf("--dump-file is required")
			}
			return runAttack(dumpFile, maxIter, log)
		},
	}

	cmd.Flags().StringVar(&dumpFile, "dump-file", "", "path to a file of base64-encoded output lines")
	cmd.Flags().IntVar(&maxIter, "max-iter", generator.DefaultIter, "upper bound for the nonce brute force")

	if err := cmd.Execute(); err != nil {
		log.Error("csprng-attack failed", "error", err)
		os.Exit(1)
	}
}

func runAttack(path string, maxIter int, log *slog.Logger) error {
	blocks, err := readDump(path)
	if err != nil {
		return err
	}
	log.Info("loaded blocks", "count", len(blocks))

	// Each captured line is a full round's worth of raw middle blocks
	// (spec.md §4.5: data, keystr, data, keystr, ...); attack the most
	// recently captured line, mirroring attack_backdoor.py's use of the
	// final line of its input file.
	last := blocks[len(blocks)-1]
	blockSize := backdoor.BlockSize
	if len(last)%blockSize != 0 {
		return fmt.Errorf("csprng-attack: captured block length %d is not a multiple of %d", len(last), blockSize)
	}

	pairs := make([][]byte, 0, len(last)/blockSize)
	for off := 0; off < len(last); off += blockSize {
		pairs = append(pairs, last[off:off+blockSize])
	}

	rec, err := backdoor.Recover(pairs, maxIter)
	if err != nil {
		return fmt.Errorf("csprng-attack: %w", err)
	}

	fmt.Printf("recovered key: %s\n", base64.StdEncoding.EncodeToString(rec.Key))
	for _, step := range rec.Steps {
		fmt.Printf("nonce %d -> %s\n", step.NonceIndex, base64.StdEncoding.EncodeToString(step.Plaintext))
	}
	return nil
}

// readDump reads one base64-encoded line per captured round, matching
// attack_backdoor.py's `open('output')` + `splitlines()` + `b64decode`
// loop.
func readDump(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csprng-attack: open %s: %w", path, err)
	}
	defer f.Close()

	var blocks [][]byte
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		decoded, err := base64.StdEncoding.DecodeString(line)
		if err != nil {
			return nil, fmt.Errorf("csprng-attack: decode line: %w", err)
		}
		blocks = append(blocks, decoded)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("csprng-attack: read %s: %w", path, err)
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("csprng-attack: %s contained no blocks", path)
	}
	return blocks, nil
}
