// Package signature implements BitSignature, the fixed-width bitset keyed by
// component id that chunks, entities, and typed groups use to describe which
// components are present or required.
package signature

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const wordBits = 64

// Signature is a fixed-length, word-packed bitset over component ids. Its
// width is determined once per deployment by the highest component id known
// to codegen (see SetWidth) and is immutable afterwards: every Signature value
// produced by a given binary has the same number of words.
//
// The zero value is the empty signature of width 0 and is safe to use; most
// callers obtain a Signature through New, which sizes it for the component
// ids registered with this package.
type Signature struct {
	words []uint64
}

// words required to hold n component ids, rounding up.
func wordsFor(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + wordBits - 1) / wordBits
}

// width is one more than the highest component id known at compile time, so
// ids 0 through width-1 have a bit. It is set exactly once, by SetWidth, which codegen calls from an init function
// for the generated schema package.
var width int

// SetWidth fixes the number of component ids this deployment knows about.
// Codegen calls this once, during package initialization, before any
// Signature is constructed. Calling it more than once with a different value
// is a wiring bug and panics.
func SetWidth(n int) {
	if width != 0 && width != n {
		panic(fmt.Sprintf("signature: width already set to %d, cannot change to %d", width, n))
	}
	width = n
}

// New returns an empty Signature sized for the component ids registered via
// SetWidth.
func New() Signature {
	return Signature{words: make([]uint64, wordsFor(width))}
}

// Clone returns an independent copy of s.
func (s Signature) Clone() Signature {
	w := make([]uint64, len(s.words))
	copy(w, s.words)
	return Signature{words: w}
}

// Set sets the bit for componentID. Component ids beyond the width fixed by
// SetWidth are silently ignored: an unknown or not-yet-compiled-in component
// simply never shows up in a signature, matching the contract that sparse
// optional features can be ignored gracefully rather than rejected.
func (s Signature) Set(componentID uint32) {
	idx := int(componentID)
	if idx < 0 || idx >= width || idx/wordBits >= len(s.words) {
		return
	}
	s.words[idx/wordBits] |= 1 << (uint(idx) % wordBits)
}

// Clear clears the bit for componentID.
func (s Signature) Clear(componentID uint32) {
	idx := int(componentID)
	if idx < 0 || idx/wordBits >= len(s.words) {
		return
	}
	s.words[idx/wordBits] &^= 1 << (uint(idx) % wordBits)
}

// Has reports whether componentID's bit is set.
func (s Signature) Has(componentID uint32) bool {
	idx := int(componentID)
	if idx < 0 || idx/wordBits >= len(s.words) {
		return false
	}
	return s.words[idx/wordBits]&(1<<(uint(idx)%wordBits)) != 0
}

// IsSubsetOf reports whether every bit set in s is also set in other. An
// empty signature is a subset of anything, including itself.
func (s Signature) IsSubsetOf(other Signature) bool {
	for i, w := range s.words {
		if i >= len(other.words) {
			if w != 0 {
				return false
			}
			continue
		}
		if w&^other.words[i] != 0 {
			return false
		}
	}
	return true
}

// Equal reports whether s and other have exactly the same bits set.
func (s Signature) Equal(other Signature) bool {
	n := len(s.words)
	if len(other.words) > n {
		n = len(other.words)
	}
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(s.words) {
			a = s.words[i]
		}
		if i < len(other.words) {
			b = other.words[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

// Empty reports whether no bit is set.
func (s Signature) Empty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Hash returns a 64-bit hash of s suitable for use as a map key, so that
// EntityStore's signature→chunk-index index can be a plain map[uint64][]int
// rather than needing Signature to be comparable through its slice (slices
// aren't comparable, and a []uint64-keyed map would box on every lookup).
func (s Signature) Hash() uint64 {
	buf := make([]byte, len(s.words)*8)
	for i, w := range s.words {
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(w >> (8 * b))
		}
	}
	return xxhash.Sum64(buf)
}

// String renders s as a sorted list of set component ids, for logging.
func (s Signature) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for i, w := range s.words {
		for bit := 0; bit < wordBits; bit++ {
			if w&(1<<uint(bit)) == 0 {
				continue
			}
			if !first {
				b.WriteByte(',')
			}
			first = false
			fmt.Fprintf(&b, "%d", i*wordBits+bit)
		}
	}
	b.WriteByte('}')
	return b.String()
}
