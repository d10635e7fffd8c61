package atlas

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/texturekit/shelfpack/shelfutils"
	"github.com/texturekit/shelfpack/shelfutils/metadata"
	"golang.org/x/exp/slog"
)

// Allocator packs axis-aligned rectangles into a single fixed-size bin using dynamic
// shelf packing. Rectangles may be freed again; adjacent free space on a shelf coalesces
// and an empty topmost shelf returns its height to the bin's vertical budget.
//
// The allocator is not safe for concurrent use. All operations complete synchronously on
// the caller's goroutine.
type Allocator struct {
	logger   *slog.Logger
	metadata *metadata.ShelfBlockMetadata
}

// Width returns the bin width the allocator was created with
func (a *Allocator) Width() int { return a.metadata.BinWidth() }

// Height returns the bin height the allocator was created with
func (a *Allocator) Height() int { return a.metadata.BinHeight() }

// UsageThreshold returns the effective usage threshold, after defaulting and clamping
func (a *Allocator) UsageThreshold() float64 { return a.metadata.UsageThreshold() }

// Allocate places a rectangle of the provided size into the bin. It is equivalent to
// AllocateNamed with an empty name.
func (a *Allocator) Allocate(size shelfutils.Size) (Allocation, error) {
	return a.AllocateNamed(size, "")
}

// AllocateNamed places a rectangle of the provided size into the bin and attaches a short
// debug label to it. The name is copied into allocator-owned storage and released when
// the allocation is freed.
//
// It returns ErrZeroSizedRequest when either dimension is smaller than 1 and ErrOutOfSpace
// when the packing policy cannot place the rectangle. On failure of any kind the allocator
// state is unchanged.
func (a *Allocator) AllocateNamed(size shelfutils.Size, name string) (Allocation, error) {
	if size.Width < 1 || size.Height < 1 {
		return Allocation{}, errors.Wrapf(ErrZeroSizedRequest, "requested %dx%d", size.Width, size.Height)
	}

	success, request, err := a.metadata.CreateAllocationRequest(size)
	if err != nil {
		return Allocation{}, err
	}
	if !success {
		return Allocation{}, errors.Wrapf(ErrOutOfSpace, "requested %dx%d", size.Width, size.Height)
	}

	var userData any
	if name != "" {
		userData = strings.Clone(name)
	}

	handle, err := a.metadata.Alloc(request, userData)
	if err != nil {
		return Allocation{}, err
	}

	rect, err := a.metadata.AllocationRect(handle)
	if err != nil {
		return Allocation{}, err
	}

	return Allocation{ID: handle, Rect: rect}, nil
}

// Free releases the allocation identified by allocation.ID. Freeing an id that is not
// active is a no-op.
func (a *Allocator) Free(allocation Allocation) {
	err := a.metadata.Free(allocation.ID)
	if err != nil {
		a.logger.Debug("Allocator::Free ignored an id that is not active", slog.Uint64("Id", uint64(allocation.ID)))
	}
}

// Get returns the currently active allocation with the provided id, if any.
func (a *Allocator) Get(id metadata.BlockAllocationHandle) (Allocation, bool) {
	rect, err := a.metadata.AllocationRect(id)
	if err != nil {
		return Allocation{}, false
	}

	return Allocation{ID: id, Rect: rect}, true
}

// Name returns the debug label attached to the active allocation with the provided id, if
// any.
func (a *Allocator) Name(id metadata.BlockAllocationHandle) (string, bool) {
	userData, err := a.metadata.AllocationUserData(id)
	if err != nil {
		return "", false
	}

	name, _ := userData.(string)
	return name, true
}

// Waste returns the summed area inside in-use blocks that is unusable because the block is
// shorter than its shelf.
func (a *Allocator) Waste() int { return a.metadata.Waste() }

// Coverage returns the summed area of all active allocations.
func (a *Allocator) Coverage() int { return a.metadata.Coverage() }

// UnusedArea returns the free area of the bin: free blocks on every shelf plus the
// unclaimed strip above the topmost shelf. For every state,
// Coverage + Waste + UnusedArea equals the full bin area.
func (a *Allocator) UnusedArea() int { return a.metadata.SumFreeArea() }

// ShelfCount returns the number of live shelves.
func (a *Allocator) ShelfCount() int { return a.metadata.ShelfCount() }

// WastePercentage returns Waste divided by Coverage. It returns 0 when nothing is placed.
func (a *Allocator) WastePercentage() float64 {
	coverage := a.metadata.Coverage()
	if coverage == 0 {
		return 0
	}

	return float64(a.metadata.Waste()) / float64(coverage)
}

// CoveragePercentage returns Coverage divided by the full bin area.
func (a *Allocator) CoveragePercentage() float64 {
	return float64(a.metadata.Coverage()) / float64(a.metadata.BinArea())
}

// Enumerate calls handleBlock once per block, visiting shelves bottom to top and blocks
// left to right. The traversal is deterministic and corresponds to internal layout order.
// Returning an error from the callback stops the traversal and returns that error.
func (a *Allocator) Enumerate(handleBlock func(view BlockView) error) error {
	return a.metadata.VisitAllRegions(
		func(handle metadata.BlockAllocationHandle, shelfIndex, shelfY, shelfHeight, offset int, size shelfutils.Size, userData any, free bool) error {
			name, _ := userData.(string)

			return handleBlock(BlockView{
				ShelfIndex:  shelfIndex,
				ShelfY:      shelfY,
				ShelfHeight: shelfHeight,
				ID:          handle,
				Offset:      offset,
				Size:        size,
				InUse:       !free,
				Name:        name,
			})
		})
}

// Statistics sums basic occupancy statistics for the bin.
func (a *Allocator) Statistics() shelfutils.Statistics {
	var stats shelfutils.Statistics
	stats.Clear()
	a.metadata.AddStatistics(&stats)
	return stats
}

// DetailedStatistics sums detailed occupancy statistics for the bin, including unused
// range extremes and waste.
func (a *Allocator) DetailedStatistics() shelfutils.DetailedStatistics {
	var stats shelfutils.DetailedStatistics
	stats.Clear()
	a.metadata.AddDetailedStatistics(&stats)
	return stats
}

// Validate performs internal consistency checks against the full set of allocator
// invariants. When the allocator is functioning correctly it cannot return an error.
func (a *Allocator) Validate() error {
	return a.metadata.Validate()
}

// Clear instantly releases every allocation, every name, and every shelf in one pass,
// returning the allocator to its empty state.
func (a *Allocator) Clear() {
	a.metadata.Clear()
}

// DebugLogLeakedAllocations writes a debug log line for every allocation still active.
// Call it before Clear or teardown to report leaks.
func (a *Allocator) DebugLogLeakedAllocations() {
	a.metadata.DebugLogAllAllocations(a.logger, func(log *slog.Logger, rect shelfutils.Rect, userData any) {
		name, _ := userData.(string)
		log.Debug("UNFREED ALLOCATION",
			slog.Int("X", rect.X),
			slog.Int("Y", rect.Y),
			slog.Int("Width", rect.Width),
			slog.Int("Height", rect.Height),
			slog.String("Name", name),
		)
	})
}
