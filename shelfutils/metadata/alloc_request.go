package metadata

import "github.com/texturekit/shelfpack/shelfutils"

// AllocationRequestType is an enum that indicates how a pending allocation will be
// placed into the bin. It is returned in AllocationRequest from CreateAllocationRequest
type AllocationRequestType uint32

const (
	// AllocationRequestExistingShelf indicates that the allocation will be carved out of a
	// free block on a shelf that already exists
	AllocationRequestExistingShelf AllocationRequestType = iota
	// AllocationRequestNewShelf indicates that a new shelf will be opened above the current
	// topmost shelf and the allocation placed at its left edge
	AllocationRequestNewShelf
	// AllocationRequestGrowShelf indicates that the topmost shelf will be grown to the
	// request height before the allocation is carved out of one of its free blocks. Shelves
	// grow only when the remaining vertical budget cannot hold a new shelf; a shelf that has
	// grown before may grow again
	AllocationRequestGrowShelf
)

var allocationRequestMapping = map[AllocationRequestType]string{
	AllocationRequestExistingShelf: "ExistingShelf",
	AllocationRequestNewShelf:      "NewShelf",
	AllocationRequestGrowShelf:     "GrowShelf",
}

func (t AllocationRequestType) String() string {
	return allocationRequestMapping[t]
}

// AllocationRequest is a type returned from BlockMetadata.CreateAllocationRequest which
// indicates where and how the metadata intends to place a rectangle. The request can be
// committed with BlockMetadata.Alloc
type AllocationRequest struct {
	// BlockAllocationHandle is a numeric handle identifying the free block the rectangle
	// will be carved from. It is NoAllocation for AllocationRequestNewShelf requests, whose
	// free block does not exist until the shelf is opened
	BlockAllocationHandle BlockAllocationHandle
	// Size is the extent of the requested rectangle
	Size shelfutils.Size
	// ShelfIndex is the index of the target shelf for existing-shelf and grow-shelf requests
	ShelfIndex int
	// ShelfY is the y origin the new shelf will be opened at for new-shelf requests
	ShelfY int
	// Type identifies how the allocation will be placed
	Type AllocationRequestType
}
