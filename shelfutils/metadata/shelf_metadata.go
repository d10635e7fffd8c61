package metadata

import (
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/texturekit/shelfpack/shelfutils"
	"golang.org/x/exp/slog"
)

// blockSite pairs a block with the shelf that owns it. Blocks carry no links
// across shelves, so handle lookups need both.
type blockSite struct {
	shelf *shelf
	block *shelfBlock
}

// ShelfBlockMetadata is a BlockMetadata implementation that partitions the bin into
// horizontal shelves. A shelf's height is fixed by the first rectangle placed in it, and
// each shelf is subdivided left to right into variable-width blocks. The usage threshold
// decides when a short rectangle would rather open a new shelf than reuse a taller one.
type ShelfBlockMetadata struct {
	BlockMetadataBase

	usageThreshold float64

	allocCount int
	shelves    []*shelf

	nextAllocationHandle BlockAllocationHandle
	handleKey            *swiss.Map[BlockAllocationHandle, blockSite]
}

var _ BlockMetadata = &ShelfBlockMetadata{}

// NewShelfBlockMetadata creates a new ShelfBlockMetadata from a usage threshold, which is
// clamped to [0, 1]. Init must be called before the metadata is used.
func NewShelfBlockMetadata(usageThreshold float64) *ShelfBlockMetadata {
	return &ShelfBlockMetadata{
		usageThreshold: shelfutils.Clamp01(usageThreshold),
	}
}

func (m *ShelfBlockMetadata) allocateBlock(owner *shelf) *shelfBlock {
	b := blockAllocator.Get().(*shelfBlock)
	b.offset = 0
	b.width = 0
	b.height = 0
	b.prev = nil
	b.next = nil
	b.inUse = false
	b.userData = nil
	m.nextAllocationHandle++
	b.blockHandle = m.nextAllocationHandle
	m.handleKey.Put(b.blockHandle, blockSite{shelf: owner, block: b})
	return b
}

func (m *ShelfBlockMetadata) freeBlock(b *shelfBlock) {
	m.handleKey.Delete(b.blockHandle)
	b.userData = nil
	blockAllocator.Put(b)
}

func (m *ShelfBlockMetadata) getSite(handle BlockAllocationHandle) (blockSite, error) {
	site, ok := m.handleKey.Get(handle)
	if !ok {
		return blockSite{}, errors.New("received a handle that was incompatible with this metadata")
	}
	return site, nil
}

func (m *ShelfBlockMetadata) Init(width, height int) {
	m.BlockMetadataBase.Init(width, height)
	m.handleKey = swiss.NewMap[BlockAllocationHandle, blockSite](42)
	m.shelves = nil
	m.allocCount = 0
}

// UsageThreshold returns the ratio below which a rectangle opens a new shelf rather than
// reusing a taller existing one.
func (m *ShelfBlockMetadata) UsageThreshold() float64 {
	return m.usageThreshold
}

func (m *ShelfBlockMetadata) summedShelfHeight() int {
	var summed int
	for _, s := range m.shelves {
		summed += s.height
	}
	return summed
}

func (m *ShelfBlockMetadata) AllocationCount() int {
	return m.allocCount
}

func (m *ShelfBlockMetadata) FreeRegionsCount() int {
	var count int
	for _, s := range m.shelves {
		for block := s.head; block != nil; block = block.next {
			if !block.inUse {
				count++
			}
		}
	}

	if m.summedShelfHeight() < m.BinHeight() {
		count++
	}

	return count
}

func (m *ShelfBlockMetadata) SumFreeArea() int {
	var area int
	for _, s := range m.shelves {
		for block := s.head; block != nil; block = block.next {
			if !block.inUse {
				area += block.width * block.height
			}
		}
	}

	return area + (m.BinHeight()-m.summedShelfHeight())*m.BinWidth()
}

func (m *ShelfBlockMetadata) Coverage() int {
	var area int
	for _, s := range m.shelves {
		for block := s.head; block != nil; block = block.next {
			if block.inUse {
				area += block.width * block.height
			}
		}
	}

	return area
}

func (m *ShelfBlockMetadata) Waste() int {
	var area int
	for _, s := range m.shelves {
		for block := s.head; block != nil; block = block.next {
			if block.inUse {
				area += block.width * (s.height - block.height)
			}
		}
	}

	return area
}

func (m *ShelfBlockMetadata) IsEmpty() bool {
	return len(m.shelves) == 0
}

func (m *ShelfBlockMetadata) ShelfCount() int {
	return len(m.shelves)
}

func (m *ShelfBlockMetadata) Validate() error {
	var summedHeight, liveBlocks, allocCount int

	for shelfIndex, s := range m.shelves {
		if s.y != summedHeight {
			return errors.Errorf("shelf %d begins at y %d, but the shelves below it add up to a height of %d", shelfIndex, s.y, summedHeight)
		}
		if s.height < 1 {
			return errors.Errorf("shelf %d has a non-positive height %d", shelfIndex, s.height)
		}
		if s.head == nil {
			return errors.Errorf("shelf %d has no blocks", shelfIndex)
		}
		if s.head.prev != nil {
			return errors.Errorf("the head block of shelf %d has a previous block", shelfIndex)
		}

		expectedOffset := 0
		prevFree := false
		for block := s.head; block != nil; block = block.next {
			liveBlocks++

			if block.offset != expectedOffset {
				return errors.Errorf("block at offset %d on shelf %d does not begin at the previous block's end offset %d", block.offset, shelfIndex, expectedOffset)
			}
			if block.width < 1 {
				return errors.Errorf("block at offset %d on shelf %d has a non-positive width %d", block.offset, shelfIndex, block.width)
			}
			if block.next != nil && block.next.prev != block {
				return errors.Errorf("block at offset %d on shelf %d has a next block, but the reverse reference is broken", block.offset, shelfIndex)
			}

			site, ok := m.handleKey.Get(block.blockHandle)
			if !ok {
				return errors.Errorf("block at offset %d on shelf %d is missing from the handle table", block.offset, shelfIndex)
			}
			if site.block != block || site.shelf != s {
				return errors.Errorf("the handle table entry for the block at offset %d on shelf %d does not point back at it", block.offset, shelfIndex)
			}

			if block.inUse {
				allocCount++
				if block.height > s.height {
					return errors.Errorf("in-use block at offset %d on shelf %d has height %d, taller than its shelf's height %d", block.offset, shelfIndex, block.height, s.height)
				}
				prevFree = false
			} else {
				if block.height != s.height {
					return errors.Errorf("free block at offset %d on shelf %d has height %d, but free blocks must span the shelf height %d", block.offset, shelfIndex, block.height, s.height)
				}
				if block.userData != nil {
					return errors.Errorf("free block at offset %d on shelf %d carries user data", block.offset, shelfIndex)
				}
				if prevFree {
					return errors.Errorf("the free block at offset %d on shelf %d was not coalesced with its free predecessor", block.offset, shelfIndex)
				}
				prevFree = true
			}

			expectedOffset += block.width
		}

		if expectedOffset != m.BinWidth() {
			return errors.Errorf("the blocks of shelf %d add up to a width of %d, but the bin is %d wide", shelfIndex, expectedOffset, m.BinWidth())
		}

		summedHeight += s.height
	}

	if summedHeight > m.BinHeight() {
		return errors.Errorf("the shelves add up to a height of %d, but the bin is only %d tall", summedHeight, m.BinHeight())
	}

	if len(m.shelves) > 0 && m.shelves[len(m.shelves)-1].isEmpty() {
		return errors.New("the topmost shelf is entirely free but was not reclaimed")
	}

	if allocCount != m.allocCount {
		return errors.Errorf("the allocation count of the metadata is %d, but the in-use blocks only added up to %d", m.allocCount, allocCount)
	}

	if liveBlocks != m.handleKey.Count() {
		return errors.Errorf("the handle table contains %d entries, but %d blocks are live", m.handleKey.Count(), liveBlocks)
	}

	return nil
}

// CreateAllocationRequest decides a placement for the requested size per the shelf
// packing policy: the candidate shelf minimizing wasted height wins, ties broken by the
// lower shelf; a candidate whose height usage falls below the usage threshold is passed
// over for a new shelf while vertical budget remains; and when nothing else fits, the
// topmost shelf is grown as a last resort.
func (m *ShelfBlockMetadata) CreateAllocationRequest(size shelfutils.Size) (bool, AllocationRequest, error) {
	var allocRequest AllocationRequest

	if size.Width < 1 || size.Height < 1 {
		return false, allocRequest, errors.Errorf("invalid allocation size %dx%d: both dimensions must be at least 1", size.Width, size.Height)
	}

	shelfutils.DebugValidate(m)

	// A rectangle wider than the bin can never be placed.
	if size.Width > m.BinWidth() {
		return false, allocRequest, nil
	}

	var pick *shelf
	var pickIndex int
	var pickFree *shelfBlock
	var summedHeight int

	for shelfIndex, s := range m.shelves {
		summedHeight += s.height

		if s.height < size.Height {
			continue
		}
		free := s.firstFreeBlock(size.Width)
		if free == nil {
			continue
		}
		if pick == nil || s.height-size.Height < pick.height-size.Height {
			pick = s
			pickIndex = shelfIndex
			pickFree = free
		}
	}

	leftoverHeight := m.BinHeight() - summedHeight

	if leftoverHeight < size.Height {
		// A new shelf does not fit. The usage threshold is a preference, not a
		// precondition: a low-usage pick still wins over failing.
		if pick != nil {
			allocRequest.Type = AllocationRequestExistingShelf
			allocRequest.BlockAllocationHandle = pickFree.blockHandle
			allocRequest.ShelfIndex = pickIndex
			allocRequest.Size = size
			return true, allocRequest, nil
		}

		if len(m.shelves) > 0 {
			topIndex := len(m.shelves) - 1
			top := m.shelves[topIndex]
			if top.height+leftoverHeight >= size.Height {
				if free := top.firstFreeBlock(size.Width); free != nil {
					allocRequest.Type = AllocationRequestGrowShelf
					allocRequest.BlockAllocationHandle = free.blockHandle
					allocRequest.ShelfIndex = topIndex
					allocRequest.Size = size
					return true, allocRequest, nil
				}
			}
		}

		return false, allocRequest, nil
	}

	if pick != nil && float64(size.Height)/float64(pick.height) >= m.usageThreshold {
		allocRequest.Type = AllocationRequestExistingShelf
		allocRequest.BlockAllocationHandle = pickFree.blockHandle
		allocRequest.ShelfIndex = pickIndex
		allocRequest.Size = size
		return true, allocRequest, nil
	}

	allocRequest.Type = AllocationRequestNewShelf
	allocRequest.BlockAllocationHandle = NoAllocation
	allocRequest.ShelfY = summedHeight
	allocRequest.Size = size
	return true, allocRequest, nil
}

func (m *ShelfBlockMetadata) Alloc(request AllocationRequest, userData any) (BlockAllocationHandle, error) {
	var handle BlockAllocationHandle

	switch request.Type {
	case AllocationRequestExistingShelf, AllocationRequestGrowShelf:
		site, err := m.getSite(request.BlockAllocationHandle)
		if err != nil {
			return NoAllocation, err
		}

		block := site.block
		s := site.shelf

		if block.inUse {
			return NoAllocation, errors.New("allocation request referenced a block that is no longer free")
		}
		if block.width < request.Size.Width {
			return NoAllocation, errors.New("allocation request referenced a block that is no longer wide enough for the request")
		}
		if request.ShelfIndex >= len(m.shelves) || m.shelves[request.ShelfIndex] != s {
			return NoAllocation, errors.New("allocation request referenced a shelf that no longer exists at the requested index")
		}

		if request.Type == AllocationRequestExistingShelf {
			if s.height < request.Size.Height {
				return NoAllocation, errors.New("allocation request referenced a shelf that is no longer tall enough for the request")
			}
		} else if request.Size.Height > s.height {
			if request.ShelfIndex != len(m.shelves)-1 {
				return NoAllocation, errors.New("only the topmost shelf can be grown")
			}
			if m.summedShelfHeight()-s.height+request.Size.Height > m.BinHeight() {
				return NoAllocation, errors.New("growing the topmost shelf would exceed the bin height")
			}

			s.height = request.Size.Height
			// Free blocks always span the full shelf height; refresh them after growth.
			for refresh := s.head; refresh != nil; refresh = refresh.next {
				if !refresh.inUse {
					refresh.height = s.height
				}
			}
		}

		m.placeInBlock(s, block, request.Size, userData)
		handle = block.blockHandle

	case AllocationRequestNewShelf:
		if request.ShelfY != m.summedShelfHeight() {
			return NoAllocation, errors.New("allocation request expected a new shelf at a y origin that is no longer current")
		}
		if m.BinHeight()-request.ShelfY < request.Size.Height {
			return NoAllocation, errors.New("allocation request expected a new shelf that no longer fits the bin height")
		}
		if request.Size.Width > m.BinWidth() {
			return NoAllocation, errors.New("allocation request is wider than the bin")
		}

		s := &shelf{y: request.ShelfY, height: request.Size.Height}
		head := m.allocateBlock(s)
		head.width = m.BinWidth()
		head.height = s.height
		s.head = head
		m.shelves = append(m.shelves, s)

		m.placeInBlock(s, head, request.Size, userData)
		handle = head.blockHandle

	default:
		return NoAllocation, errors.Errorf("allocation request had an unknown type %s", request.Type)
	}

	m.allocCount++

	return handle, nil
}

// placeInBlock carves the requested size out of the left edge of a free block,
// splitting off the remainder as a new free block when the block is wider than
// the request.
func (m *ShelfBlockMetadata) placeInBlock(s *shelf, block *shelfBlock, size shelfutils.Size, userData any) {
	if block.inUse {
		panic("cannot place a rectangle in a block that is already taken")
	}

	if block.width > size.Width {
		remainder := m.allocateBlock(s)
		remainder.offset = block.offset + size.Width
		remainder.width = block.width - size.Width
		remainder.height = s.height
		remainder.prev = block
		remainder.next = block.next
		if block.next != nil {
			block.next.prev = remainder
		}
		block.next = remainder
	}

	block.width = size.Width
	block.height = size.Height
	block.inUse = true
	block.userData = userData
}

func (m *ShelfBlockMetadata) Free(allocHandle BlockAllocationHandle) error {
	site, err := m.getSite(allocHandle)
	if err != nil {
		return err
	}

	block := site.block
	s := site.shelf

	if !block.inUse {
		return errors.New("block is already free")
	}

	block.inUse = false
	block.userData = nil
	m.allocCount--

	// Walk left to the start of the free run, then merge everything to its right.
	run := block
	for run.prev != nil && !run.prev.inUse {
		run = run.prev
	}
	for run.next != nil && !run.next.inUse {
		next := run.next
		run.width += next.width
		run.next = next.next
		if next.next != nil {
			next.next.prev = run
		}
		m.freeBlock(next)
	}
	run.height = s.height

	// Only the topmost shelf is reclaimed. An empty interior shelf stays, because
	// removing it would shift the y origin of every shelf above it; once the shelves
	// above it are gone and it is topmost, it is reclaimed in turn.
	if s == m.shelves[len(m.shelves)-1] {
		for len(m.shelves) > 0 && m.shelves[len(m.shelves)-1].isEmpty() {
			top := m.shelves[len(m.shelves)-1]
			m.shelves = m.shelves[:len(m.shelves)-1]
			m.freeBlock(top.head)
		}
	}

	return nil
}

func (m *ShelfBlockMetadata) VisitAllRegions(handleRegion func(handle BlockAllocationHandle, shelfIndex, shelfY, shelfHeight, offset int, size shelfutils.Size, userData any, free bool) error) error {
	for shelfIndex, s := range m.shelves {
		for block := s.head; block != nil; block = block.next {
			err := handleRegion(block.blockHandle, shelfIndex, s.y, s.height, block.offset, shelfutils.Size{Width: block.width, Height: block.height}, block.userData, !block.inUse)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func (m *ShelfBlockMetadata) AllocationRect(allocHandle BlockAllocationHandle) (shelfutils.Rect, error) {
	site, err := m.getSite(allocHandle)
	if err != nil {
		return shelfutils.Rect{}, err
	}

	if !site.block.inUse {
		return shelfutils.Rect{}, errors.New("a rect cannot be retrieved for a free block")
	}

	return shelfutils.Rect{
		Position: shelfutils.Position{X: site.block.offset, Y: site.shelf.y},
		Size:     shelfutils.Size{Width: site.block.width, Height: site.block.height},
	}, nil
}

func (m *ShelfBlockMetadata) AllocationUserData(allocHandle BlockAllocationHandle) (any, error) {
	site, err := m.getSite(allocHandle)
	if err != nil {
		return nil, err
	}

	if !site.block.inUse {
		return nil, errors.New("user data cannot be retrieved for a free block")
	}

	return site.block.userData, nil
}

func (m *ShelfBlockMetadata) SetAllocationUserData(allocHandle BlockAllocationHandle, userData any) error {
	site, err := m.getSite(allocHandle)
	if err != nil {
		return err
	}

	if !site.block.inUse {
		return errors.New("user data cannot be set for a free block")
	}

	site.block.userData = userData
	return nil
}

func (m *ShelfBlockMetadata) AddStatistics(stats *shelfutils.Statistics) {
	stats.ShelfCount += len(m.shelves)
	stats.AllocationCount += m.allocCount
	stats.BinArea += m.BinArea()
	stats.AllocationArea += m.Coverage()
}

func (m *ShelfBlockMetadata) AddDetailedStatistics(stats *shelfutils.DetailedStatistics) {
	stats.ShelfCount += len(m.shelves)
	stats.BinArea += m.BinArea()

	for _, s := range m.shelves {
		for block := s.head; block != nil; block = block.next {
			if block.inUse {
				stats.AddAllocation(block.width * block.height)
				stats.AddWaste(block.width * (s.height - block.height))
			} else {
				stats.AddUnusedRange(block.width * block.height)
			}
		}
	}

	leftoverArea := (m.BinHeight() - m.summedShelfHeight()) * m.BinWidth()
	if leftoverArea > 0 {
		stats.AddUnusedRange(leftoverArea)
	}
}

func (m *ShelfBlockMetadata) Clear() {
	for _, s := range m.shelves {
		block := s.head
		for block != nil {
			next := block.next
			m.freeBlock(block)
			block = next
		}
		s.head = nil
	}

	m.shelves = nil
	m.allocCount = 0
}

// BlockJsonData populates a json object with information about this bin
func (m *ShelfBlockMetadata) BlockJsonData(json jwriter.ObjectState) {
	// first pass
	var unusedRangeCount, usedArea, allocCount int

	_ = m.VisitAllRegions(
		func(handle BlockAllocationHandle, shelfIndex, shelfY, shelfHeight, offset int, size shelfutils.Size, userData any, free bool) error {
			if free {
				unusedRangeCount++
			} else {
				usedArea += size.Area()
				allocCount++
			}

			return nil
		})

	if m.summedShelfHeight() < m.BinHeight() {
		unusedRangeCount++
	}

	unusedArea := m.BinArea() - usedArea
	m.WriteBlockJson(json, unusedArea, allocCount, unusedRangeCount)
}

// DebugLogAllAllocations walks every placed rectangle and passes it to logFunc. It can be
// used to report leaked placements before Clear.
func (m *ShelfBlockMetadata) DebugLogAllAllocations(logger *slog.Logger, logFunc func(log *slog.Logger, rect shelfutils.Rect, userData any)) {
	for _, s := range m.shelves {
		for block := s.head; block != nil; block = block.next {
			if block.inUse {
				rect := shelfutils.Rect{
					Position: shelfutils.Position{X: block.offset, Y: s.y},
					Size:     shelfutils.Size{Width: block.width, Height: block.height},
				}
				logFunc(logger, rect, block.userData)
			}
		}
	}
}
