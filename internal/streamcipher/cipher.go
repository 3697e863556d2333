// Package streamcipher wraps the ChaCha20 stream cipher behind the two
// pure operations the generator round needs: a keystream-XOR transform of
// arbitrary length, and byte-wise XOR. Both are pure functions of their
// arguments; neither retains any state between calls.
package streamcipher

import (
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// KeySize is the required length, in bytes, of keys passed to Stream.
const KeySize = chacha20.KeySize

// NonceSize is the required length, in bytes, of nonces passed to Stream.
// The generator's decimal-ASCII nonce encoding (spec.md §3 invariant 5)
// produces exactly this many bytes.
const NonceSize = chacha20.NonceSize

// Stream runs ChaCha20 keyed by key and nonce over input and returns a
// freshly allocated output of the same length. len(key) must equal
// KeySize and len(nonce) must equal NonceSize; anything else is a
// programmer error and is fatal, matching spec.md §4.1 ("no recoverable
// errors").
//
// golang.org/x/crypto/chacha20's XORKeyStream runs in constant time with
// respect to key and plaintext bytes, which is what the wrapper's
// constant-time requirement rests on.
func Stream(key, nonce, input []byte) []byte {
	if len(key) != KeySize {
		panic(fmt.Sprintf("streamcipher: key must be %d bytes, got %d", KeySize, len(key)))
	}
	if len(nonce) != NonceSize {
		panic(fmt.Sprintf("streamcipher: nonce must be %d bytes, got %d", NonceSize, len(nonce)))
	}

	c, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		// Only possible error is bad key/nonce size, both already checked above.
		panic(fmt.Sprintf("streamcipher: cipher init: %v", err))
	}

	out := make([]byte, len(input))
	c.XORKeyStream(out, input)
	return out
}

// XOR returns the byte-wise XOR of a and b, truncated to the shorter of
// the two inputs, as spec.md §4.1 requires.
func XOR(a, b []byte) []byte {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Wipe overwrites buf with zeros in place. Callers use this to scrub
// superseded key material and round buffers per spec.md §5's
// zeroization requirement.
func Wipe(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
}
