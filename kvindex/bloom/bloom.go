// Package bloom implements the fixed 256-bit, two-hash Bloom filter
// embedded in every leaf page.
//
// False positives are allowed; false negatives are forbidden. Any
// operation that alters a leaf's key set must call Rebuild from the
// authoritative key list before the leaf is unpinned.
package bloom

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	farm "github.com/dgryski/go-farm"
)

// Size is the filter width in bytes (256 bits).
const Size = 32

// Filter is a 256-bit Bloom filter over 32-bit keys.
type Filter [Size]byte

// Clear zeroes all bits.
func (f *Filter) Clear() {
	*f = Filter{}
}

// h1 and h2 are two independent hash functions over a key's 4 big-endian
// bytes, each reduced mod 256. Using xxHash and FarmHash — two
// unrelated hash families — rather than mixing one hash with a constant
// multiplier gives the filter genuinely independent bit positions,
// addressing the reference's platform-defined std::hash<int> mix.
func h1(key int32) byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(key))
	return byte(xxhash.Sum64(b[:]) % 256)
}

func h2(key int32) byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(key))
	return byte(farm.Hash64(b[:]) % 256)
}

func setBit(f *Filter, pos byte) {
	f[pos/8] |= 1 << (pos % 8)
}

func getBit(f *Filter, pos byte) bool {
	return f[pos/8]&(1<<(pos%8)) != 0
}

// Add sets the two bits corresponding to key.
func (f *Filter) Add(key int32) {
	setBit(f, h1(key))
	setBit(f, h2(key))
}

// PossiblyContains reports whether key might be a member: true iff both
// of its bits are set. A true result can be a false positive; a false
// result is always a true negative.
func (f *Filter) PossiblyContains(key int32) bool {
	return getBit(f, h1(key)) && getBit(f, h2(key))
}

// Rebuild clears f and re-adds every key in keys[0:size]. Callers must
// call this after any mutation to a leaf's key set, before the leaf is
// unpinned, so the filter stays consistent with invariant I2.
func Rebuild(f *Filter, keys []int32, size int) {
	f.Clear()
	for i := 0; i < size; i++ {
		f.Add(keys[i])
	}
}
