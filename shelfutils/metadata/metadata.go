package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/texturekit/shelfpack/shelfutils"
)

// BlockMetadata represents the occupancy bookkeeping for a single fixed-size bin. It
// manages the rectangles placed within the bin, allowing placements to be requested and
// freed, as well as enumerated and queried.
type BlockMetadata interface {
	// Init must be called before the BlockMetadata is used. It gives the implementation an
	// opportunity to ensure that metadata structures are prepared for allocations, as well
	// as allows the consumer to inform the implementation of the bin dimensions it will be
	// managing.
	Init(width, height int)
	// BinWidth retrieves the bin width the metadata was initialized with
	BinWidth() int
	// BinHeight retrieves the bin height the metadata was initialized with
	BinHeight() int

	// Validate performs internal consistency checks on the metadata. These checks may be
	// expensive. When the implementation is functioning correctly, it should not be possible
	// for this method to return an error, but this may assist in diagnosing issues with the
	// implementation.
	Validate() error
	// AllocationCount returns the number of rectangles currently placed in the bin. This
	// number should generally be the number of successful allocations minus the number of
	// successful frees.
	AllocationCount() int
	// FreeRegionsCount returns the number of unique regions of free space in the bin.
	// Adjacent free blocks on one shelf are counted as a single region (or, in fact, merged
	// into a single region); the unclaimed strip above the topmost shelf counts as one
	// region when it is not empty.
	FreeRegionsCount() int
	// SumFreeArea returns the free area of the bin: free blocks on every shelf plus the
	// unclaimed strip above the topmost shelf.
	SumFreeArea() int
	// Coverage returns the summed area of all placed rectangles.
	Coverage() int
	// Waste returns the summed area inside in-use blocks that is unusable because the block
	// is shorter than its shelf.
	Waste() int

	// IsEmpty will return true if the bin has no shelves
	IsEmpty() bool
	// ShelfCount returns the number of live shelves
	ShelfCount() int

	// VisitAllRegions will call the provided callback once for each placed rectangle and
	// free block in the bin, visiting shelves bottom to top and blocks left to right. The
	// traversal order is deterministic and corresponds to internal layout order.
	VisitAllRegions(handleRegion func(handle BlockAllocationHandle, shelfIndex, shelfY, shelfHeight, offset int, size shelfutils.Size, userData any, free bool) error) error

	// AllocationRect accepts a BlockAllocationHandle that maps to a placed rectangle and
	// returns its absolute position and size within the bin.
	//
	// The implementation must return an error if the provided handle does not map to a
	// placed rectangle within this bin.
	AllocationRect(allocHandle BlockAllocationHandle) (shelfutils.Rect, error)
	// AllocationUserData accepts a BlockAllocationHandle that maps to a placed rectangle and
	// returns the userdata value provided by the consumer for that placement.
	//
	// The implementation must return an error if the provided handle does not map to a
	// placed rectangle within this bin.
	AllocationUserData(allocHandle BlockAllocationHandle) (any, error)
	// SetAllocationUserData accepts a BlockAllocationHandle that maps to a placed rectangle
	// and a userData value. The placement's userData is changed to the provided userData.
	//
	// The implementation must return an error if the provided handle does not map to a
	// placed rectangle within this bin.
	SetAllocationUserData(allocHandle BlockAllocationHandle, userData any) error

	// AddDetailedStatistics sums this bin's occupancy statistics into the statistics
	// currently present in the provided shelfutils.DetailedStatistics object.
	AddDetailedStatistics(stats *shelfutils.DetailedStatistics)
	// AddStatistics sums this bin's occupancy statistics into the statistics currently
	// present in the provided shelfutils.Statistics object.
	AddStatistics(stats *shelfutils.Statistics)

	// Clear instantly frees all placements and shelves
	Clear()
	// BlockJsonData populates a json object with information about this bin
	BlockJsonData(json jwriter.ObjectState)

	// CreateAllocationRequest retrieves an AllocationRequest object indicating where and how
	// the implementation would prefer to place the requested rectangle. That object can be
	// passed to Alloc to commit the placement. The first return indicates whether a
	// placement exists at all; when it is false and the error is nil, the bin is out of
	// space for this request.
	//
	// The implementation must return an error, and must not treat the request as
	// out-of-space, when either dimension of the requested size is smaller than 1.
	CreateAllocationRequest(size shelfutils.Size) (bool, AllocationRequest, error)
	// Alloc commits an AllocationRequest object, placing the rectangle in the bin based on
	// the data described in the AllocationRequest, and returns the handle of the placed
	// block. The implementation must return an error if the placement is no longer valid-
	// i.e. the requested free block no longer exists, is not free, is no longer wide enough
	// to support the request, etc.
	Alloc(request AllocationRequest, userData any) (BlockAllocationHandle, error)

	// Free releases a placed rectangle, causing its block to become free space once again.
	// Free blocks coalesce with their free neighbors, and a topmost shelf left entirely free
	// is reclaimed.
	//
	// The implementation must return an error if the provided handle does not map to a
	// placed rectangle within this bin.
	Free(allocHandle BlockAllocationHandle) error
}

// BlockMetadataBase is a simple struct that provides a few shared utilities for
// BlockMetadata implementations in the shelfpack module.
type BlockMetadataBase struct {
	binWidth  int
	binHeight int
}

// Init prepares this structure for placements and records the bin dimensions.
func (m *BlockMetadataBase) Init(width, height int) {
	m.binWidth = width
	m.binHeight = height
}

// BinWidth returns the width of the bin
func (m *BlockMetadataBase) BinWidth() int { return m.binWidth }

// BinHeight returns the height of the bin
func (m *BlockMetadataBase) BinHeight() int { return m.binHeight }

// BinArea returns the full area of the bin
func (m *BlockMetadataBase) BinArea() int { return m.binWidth * m.binHeight }

// WriteBlockJson populates a json object with information about this bin
func (m *BlockMetadataBase) WriteBlockJson(json jwriter.ObjectState, unusedArea, allocationCount, unusedRangeCount int) {
	json.Name("BinWidth").Int(m.BinWidth())
	json.Name("BinHeight").Int(m.BinHeight())
	json.Name("TotalArea").Int(m.BinArea())
	json.Name("UnusedArea").Int(unusedArea)
	json.Name("Allocations").Int(allocationCount)
	json.Name("UnusedRanges").Int(unusedRangeCount)
}
