// Package backdoor reimplements attack_backdoor.py: given output captured
// while a generator runs with EmitKeyMaterial enabled (spec.md §4.5), it
// recovers the key in effect for a round and uses it to decrypt the
// preceding data block, walking backwards through the captured blocks
// until a key-rotation boundary breaks the chain.
//
// This only works against the insecure publication mode. It exists to
// demonstrate, reproducibly, why that mode must never be the default.
package backdoor

import (
	"bytes"
	"fmt"

	"github.com/bentasker/csprng-experimentation/internal/streamcipher"
)

// BlockSize is the width of one data or keystr block, per spec.md §3.
const BlockSize = streamcipher.KeySize

// nonceFor mirrors generator.asciiDecimal12: the ASCII-decimal, 12-byte
// encoding of a cipher-call index.
func nonceFor(i int) []byte {
	return []byte(fmt.Sprintf("%012d", i))
}

// RecoverKey reconstructs the 32-byte key used to produce a keystr block,
// given the data block and keystr block that were emitted as a pair. It
// mirrors attack_backdoor.py's split_key(xor_bytes(...)): the keystr block
// is key XOR data, truncated to the first 32 bytes of the concatenated
// key+prevKey material.
func RecoverKey(dataBlock, keystrBlock []byte) ([]byte, error) {
	if len(dataBlock) != BlockSize || len(keystrBlock) != BlockSize {
		return nil, fmt.Errorf("backdoor: blocks must be %d bytes", BlockSize)
	}
	return streamcipher.XOR(dataBlock, keystrBlock), nil
}

// TryNonces brute-forces the cipher-call index used to produce ciphertext
// from key, by decrypting under every nonce from 1 to maxIter and
// comparing against matchAgainst. It returns the recovered plaintext and
// the nonce index on success.
func TryNonces(ciphertext, key, matchAgainst []byte, maxIter int) (plaintext []byte, nonceIndex int, found bool) {
	for i := 1; i <= maxIter; i++ {
		candidate := streamcipher.Stream(key, nonceFor(i), ciphertext)
		if bytes.Equal(candidate, matchAgainst) {
			return candidate, i, true
		}
	}
	return nil, 0, false
}

// Step is one recovered (predicted, index) pair in a Recovery chain.
type Step struct {
	NonceIndex int
	Plaintext  []byte
}

// Recovery is the result of walking a captured block stream backwards
// from its tail.
type Recovery struct {
	Key   []byte
	Steps []Step
}

// Recover reimplements attack_backdoor.py's main routine against a slice
// of raw middle blocks captured from one round published with
// EmitKeyMaterial set (alternating data, keystr, data, keystr, ...,
// ending on a keystr block). maxIter is the generator's configured Iter
// (spec.md's ITER; cipher calls run 1..Iter/2, but key rotation means a
// brute force must try the full Iter range to be safe against early
// wraps, matching the Python script's range(1,24)).
func Recover(blocks [][]byte, maxIter int) (*Recovery, error) {
	if len(blocks)%2 != 0 || len(blocks) < 6 {
		return nil, fmt.Errorf("backdoor: need an even number of blocks, at least 6, got %d", len(blocks))
	}
	for _, b := range blocks {
		if len(b) != BlockSize {
			return nil, fmt.Errorf("backdoor: all blocks must be %d bytes", BlockSize)
		}
	}

	last := blocks[len(blocks)-1]
	prev := blocks[len(blocks)-2]

	key, err := RecoverKey(last, prev)
	if err != nil {
		return nil, err
	}

	// final-block case: final is the keystr half of the last pair.
	dataPos := 2
	predicted, nonceIdx, found := TryNonces(prev, key, blocks[len(blocks)-4], maxIter)

	if !found {
		// final-block case: final is itself a data block, i.e. the pair
		// boundary is shifted by one.
		key, err = RecoverKey(prev, blocks[len(blocks)-3])
		if err != nil {
			return nil, err
		}
		dataPos = 3
		predicted, nonceIdx, found = TryNonces(blocks[len(blocks)-3], key, blocks[len(blocks)-5], maxIter)
	}

	if !found {
		return nil, fmt.Errorf("backdoor: could not recover key from tail blocks")
	}

	rec := &Recovery{Key: key, Steps: []Step{{NonceIndex: nonceIdx, Plaintext: predicted}}}

	n := nonceIdx
	for {
		n--
		if n <= 0 {
			break
		}
		dataPos += 2
		if dataPos > len(blocks) {
			break
		}
		input := blocks[len(blocks)-dataPos]
		attempt := streamcipher.Stream(key, nonceFor(n), input)

		outPos := dataPos + 2
		if outPos > len(blocks) {
			break
		}
		want := blocks[len(blocks)-outPos]
		if !bytes.Equal(attempt, want) {
			// Most likely a key-rotation boundary (spec.md §3 invariant
			// 6): recovering past it needs the spare-derived key, which
			// this walk does not attempt.
			break
		}
		rec.Steps = append(rec.Steps, Step{NonceIndex: n, Plaintext: attempt})
	}

	return rec, nil
}
