package atlas

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/texturekit/shelfpack/shelfutils"
	"github.com/texturekit/shelfpack/shelfutils/metadata"
)

// Hash produces a 64-bit fingerprint of the bin's current occupancy, for use as a
// regression fingerprint. Blocks are visited in layout order (shelves bottom to top,
// blocks left to right) and each contributes, in order: the in-use flag as one byte, then
// the block offset, the shelf y origin, the block width, and the block height, each as a
// little-endian unsigned 64-bit value. Block ids, names, and shelf heights are not hashed;
// the fingerprint characterizes the geometric state visible to consumers.
//
// The hasher is xxhash64 seeded with the provided seed. Two allocators fed identical
// request/free sequences produce the same hash.
func (a *Allocator) Hash(seed uint64) uint64 {
	digest := xxhash.NewWithSeed(seed)

	var inUseByte [1]byte
	var field [8]byte

	_ = a.metadata.VisitAllRegions(
		func(handle metadata.BlockAllocationHandle, shelfIndex, shelfY, shelfHeight, offset int, size shelfutils.Size, userData any, free bool) error {
			inUseByte[0] = 0
			if !free {
				inUseByte[0] = 1
			}
			_, _ = digest.Write(inUseByte[:])

			binary.LittleEndian.PutUint64(field[:], uint64(offset))
			_, _ = digest.Write(field[:])

			binary.LittleEndian.PutUint64(field[:], uint64(shelfY))
			_, _ = digest.Write(field[:])

			binary.LittleEndian.PutUint64(field[:], uint64(size.Width))
			_, _ = digest.Write(field[:])

			binary.LittleEndian.PutUint64(field[:], uint64(size.Height))
			_, _ = digest.Write(field[:])

			return nil
		})

	return digest.Sum64()
}
