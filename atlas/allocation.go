package atlas

import (
	"github.com/texturekit/shelfpack/shelfutils"
	"github.com/texturekit/shelfpack/shelfutils/metadata"
)

// Allocation identifies one placed rectangle. The ID stays valid until the allocation is
// passed to Allocator.Free; the Rect is in absolute bin coordinates.
type Allocation struct {
	ID   metadata.BlockAllocationHandle
	Rect shelfutils.Rect
}

// BlockView is a single row of Allocator.Enumerate: one block of one shelf, in layout
// order. For a free block, Size spans the remaining block width and the full shelf height
// and Name is empty.
type BlockView struct {
	ShelfIndex  int
	ShelfY      int
	ShelfHeight int

	ID     metadata.BlockAllocationHandle
	Offset int
	Size   shelfutils.Size
	InUse  bool
	Name   string
}
