package metadata

import "sync"

var blockAllocator = sync.Pool{
	New: func() any {
		return &shelfBlock{}
	},
}

// shelfBlock is one horizontal slot within a shelf. Blocks form an intrusive
// doubly linked list per shelf; there are no links across shelves.
type shelfBlock struct {
	offset int
	width  int
	height int

	prev *shelfBlock
	next *shelfBlock

	inUse       bool
	userData    any
	blockHandle BlockAllocationHandle
}

// shelf is one horizontal row of the bin. Its height is fixed by the first
// rectangle placed in it; while it is the topmost shelf it may grow, as a last
// resort when the bin's vertical budget is exhausted. The number of times a
// shelf grows is not limited.
type shelf struct {
	y      int
	height int
	head   *shelfBlock
}

// firstFreeBlock returns the leftmost free block at least width wide, if any.
func (s *shelf) firstFreeBlock(width int) *shelfBlock {
	for block := s.head; block != nil; block = block.next {
		if !block.inUse && block.width >= width {
			return block
		}
	}

	return nil
}

// isEmpty reports whether the shelf has coalesced down to a single free block.
func (s *shelf) isEmpty() bool {
	return s.head != nil && !s.head.inUse && s.head.next == nil
}
