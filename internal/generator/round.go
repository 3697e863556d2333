package generator

import (
	"fmt"

	"github.com/bentasker/csprng-experimentation/internal/entropy"
	"github.com/bentasker/csprng-experimentation/internal/streamcipher"
)

// roundResult holds everything one call to expand produces: the
// interleaved (data, keystr) block stream with the first and last pairs
// already trimmed off, plus the state that replaces the GeneratorState
// for the next round. Blocks are kept separate (rather than
// pre-concatenated) so the caller can apply the secure/insecure
// publication filter spec.md §4.5 requires.
type roundResult struct {
	// middle holds 2*(L-2) blocks, alternating data, keystr, data,
	// keystr, ... for the iterations strictly between the first and last
	// of the round (L = Iter/2 cipher calls).
	middle [][]byte

	nextKey     []byte
	nextPrevKey []byte
	nextSpare   []byte
	nextInput   []byte
}

// asciiDecimal12 renders i as exactly 12 ASCII decimal digits,
// left-padded with '0', per spec.md §3 invariant 5.
func asciiDecimal12(i int) []byte {
	return []byte(fmt.Sprintf("%012d", i))
}

// expand runs one round: Iter/2 cipher calls over s, performing the
// in-round key mutation at call Iter/4, and returns the produced blocks
// plus the state the caller should install for the next round. s itself
// is not mutated; expand only reads it.
//
// ep is the entropy provider used for prediction-resistance mixing; it
// is only consulted when cfg.PredictionResistant is true.
func expand(s *State, cfg Config, ep *entropy.Provider) (*roundResult, error) {
	L := cfg.iterCalls()
	mutateAt := cfg.mutatePoint()

	// Round-local working copies. The round must not mutate s directly;
	// the caller installs the result only after the round completes,
	// so a reseed observed mid-round (spec.md §5: "mid-round output is
	// never mixed") cannot leak into this round's computation.
	key := append([]byte(nil), s.Key...)
	prevKey := append([]byte(nil), s.PrevKey...)
	var spare []byte
	if s.Spare != nil {
		spare = append([]byte(nil), s.Spare...)
	}
	state := append([]byte(nil), s.Input...)
	roundStartKey := append([]byte(nil), s.Key...)

	blocks := make([][]byte, 0, 2*L)

	for i := 1; i <= L; i++ {
		nonce := asciiDecimal12(i)

		if cfg.PredictionResistant {
			mix, err := ep.Fetch(BlockSize)
			if err != nil {
				return nil, fmt.Errorf("generator: prediction-resistance fetch: %w", err)
			}
			state = streamcipher.XOR(mix, state)
			streamcipher.Wipe(mix)
		}

		state = streamcipher.Stream(key, nonce, state)

		concatKeyPrev := append(append([]byte(nil), key...), prevKey...)
		keystr := streamcipher.XOR(concatKeyPrev[:BlockSize], state)
		streamcipher.Wipe(concatKeyPrev)

		if i == mutateAt && spare != nil {
			oldKey := key
			prevKey = oldKey
			key = streamcipher.XOR(oldKey, spare)
			streamcipher.Wipe(spare)
			spare = nil
			streamcipher.Wipe(oldKey)
		}

		blocks = append(blocks, state, keystr)
	}

	// Key derivation (spec.md §4.2 step 2): new key/spare come from the
	// data blocks at indices 0 and 2 of the produced pair-stream, i.e.
	// the state blocks of cipher calls 1 and 2 — skipping call 1's
	// keystr at index 1. This is normative, not a bug (spec.md §9).
	derived := streamcipher.XOR(blocks[0], blocks[2])
	nextKey := derived
	nextSpare := append([]byte(nil), derived...)

	nextInput := streamcipher.XOR(blocks[len(blocks)-1], blocks[len(blocks)-2])

	middle := blocks[2 : len(blocks)-2]

	// blocks[0], blocks[1] (iteration 1's pair, including the skipped
	// B[1] per spec.md §9) and the final pair are never published; wipe
	// them now that the values they fed into (derived key/spare, next
	// input) have been extracted, per spec.md §5's zeroization rule.
	streamcipher.Wipe(blocks[0])
	streamcipher.Wipe(blocks[1])
	streamcipher.Wipe(blocks[len(blocks)-1])
	streamcipher.Wipe(blocks[len(blocks)-2])

	streamcipher.Wipe(roundStartKey)
	streamcipher.Wipe(key)
	streamcipher.Wipe(prevKey)

	return &roundResult{
		middle:      middle,
		nextKey:     nextKey,
		nextPrevKey: append([]byte(nil), s.Key...), // the key in effect at the start of this round, invariant 3
		nextSpare:   nextSpare,
		nextInput:   nextInput,
	}, nil
}

// publish assembles the bytes that leave the generator for this round,
// applying the secure/insecure filter spec.md §4.5 names: the secure
// default keeps only the data (state) blocks; the insecure mode
// interleaves the keystr blocks too, reproducing the original's
// backdoored wire format.
func publish(middle [][]byte, emitKeyMaterial bool) []byte {
	if emitKeyMaterial {
		total := 0
		for _, b := range middle {
			total += len(b)
		}
		out := make([]byte, 0, total)
		for _, b := range middle {
			out = append(out, b...)
		}
		return out
	}

	out := make([]byte, 0, (len(middle)/2)*BlockSize)
	for i := 0; i < len(middle); i += 2 {
		out = append(out, middle[i]...)
	}
	return out
}
