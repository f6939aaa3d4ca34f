// Package fingerprint implements the 64-bit weighted-token-bag SimHash used
// for candidate-based nearest-neighbour similarity search (spec.md §4.B).
//
// No example repo in the retrieval pack implements SimHash, so this follows
// the specification literally rather than adapting an existing
// implementation; the FNV-1a hash and bit-weight-voting approach are the
// standard construction for this algorithm. See DESIGN.md for the
// no-corpus-grounding note.
package fingerprint

import "hash/fnv"

// Bands is the four non-overlapping 16-bit slices of a 64-bit fingerprint,
// used as bucket keys for candidate generation.
type Bands struct {
	Band0 uint16
	Band1 uint16
	Band2 uint16
	Band3 uint16
}

// Fingerprint computes the 64-bit SimHash of a token bag. Deterministic and
// pure: the empty (or all-blank) token sequence yields fingerprint 0.
func Fingerprint(tokens []string) uint64 {
	var weights [64]int64

	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		h := hashToken(tok)
		for bit := 0; bit < 64; bit++ {
			if h&(1<<uint(bit)) != 0 {
				weights[bit]++
			} else {
				weights[bit]--
			}
		}
	}

	var fp uint64
	for bit := 0; bit < 64; bit++ {
		if weights[bit] > 0 {
			fp |= 1 << uint(bit)
		}
	}
	return fp
}

func hashToken(tok string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tok))
	return h.Sum64()
}

// SplitBands extracts the four 16-bit bands (bits 0-15, 16-31, 32-47,
// 48-63) from a fingerprint.
func SplitBands(fp uint64) Bands {
	return Bands{
		Band0: uint16(fp & 0xFFFF),
		Band1: uint16((fp >> 16) & 0xFFFF),
		Band2: uint16((fp >> 32) & 0xFFFF),
		Band3: uint16((fp >> 48) & 0xFFFF),
	}
}

// HammingDistance is the similarity metric used downstream by the query
// orchestrator's similarity operator: popcount(a XOR b), symmetric, in
// [0, 64].
func HammingDistance(a, b uint64) int {
	x := a ^ b
	count := 0
	for x != 0 {
		x &= x - 1
		count++
	}
	return count
}
