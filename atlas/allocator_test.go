package atlas_test

import (
	"os"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/texturekit/shelfpack/atlas"
	"github.com/texturekit/shelfpack/shelfutils"
	"golang.org/x/exp/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout))
}

func TestAllocatorBasics(t *testing.T) {
	allocator, err := atlas.New(testLogger(), 1024, 1024, atlas.CreateOptions{})
	require.NoError(t, err)

	require.Equal(t, 1024, allocator.Width())
	require.Equal(t, 1024, allocator.Height())
	require.Equal(t, 0.8, allocator.UsageThreshold())

	allocA, err := allocator.AllocateNamed(shelfutils.Size{Width: 100, Height: 100}, "a")
	require.NoError(t, err)
	require.Equal(t, shelfutils.Rect{
		Position: shelfutils.Position{X: 0, Y: 0},
		Size:     shelfutils.Size{Width: 100, Height: 100},
	}, allocA.Rect)

	allocB, err := allocator.Allocate(shelfutils.Size{Width: 128, Height: 128})
	require.NoError(t, err)
	require.Equal(t, shelfutils.Rect{
		Position: shelfutils.Position{X: 0, Y: 100},
		Size:     shelfutils.Size{Width: 128, Height: 128},
	}, allocB.Rect)

	require.NotEqual(t, allocA.ID, allocB.ID)
	require.NoError(t, allocator.Validate())

	found, ok := allocator.Get(allocA.ID)
	require.True(t, ok)
	require.Equal(t, allocA, found)

	name, ok := allocator.Name(allocA.ID)
	require.True(t, ok)
	require.Equal(t, "a", name)

	name, ok = allocator.Name(allocB.ID)
	require.True(t, ok)
	require.Equal(t, "", name)

	allocator.Free(allocA)
	require.NoError(t, allocator.Validate())

	_, ok = allocator.Get(allocA.ID)
	require.False(t, ok)
	_, ok = allocator.Name(allocA.ID)
	require.False(t, ok)
}

func TestAllocatorBadCreate(t *testing.T) {
	_, err := atlas.New(testLogger(), 0, 100, atlas.CreateOptions{})
	require.Error(t, err)

	_, err = atlas.New(testLogger(), 100, -1, atlas.CreateOptions{})
	require.Error(t, err)
}

func TestAllocatorThresholdClamped(t *testing.T) {
	allocator, err := atlas.New(testLogger(), 100, 100, atlas.CreateOptions{UsageThreshold: 7.5})
	require.NoError(t, err)
	require.Equal(t, 1.0, allocator.UsageThreshold())
}

func TestAllocatorZeroSizedRequest(t *testing.T) {
	allocator, err := atlas.New(testLogger(), 100, 100, atlas.CreateOptions{})
	require.NoError(t, err)

	_, err = allocator.Allocate(shelfutils.Size{Width: 0, Height: 10})
	require.ErrorIs(t, err, atlas.ErrZeroSizedRequest)
	require.NotErrorIs(t, err, atlas.ErrOutOfSpace)

	_, err = allocator.Allocate(shelfutils.Size{Width: 10, Height: 0})
	require.ErrorIs(t, err, atlas.ErrZeroSizedRequest)
}

func TestAllocatorOutOfSpace(t *testing.T) {
	allocator, err := atlas.New(testLogger(), 100, 100, atlas.CreateOptions{})
	require.NoError(t, err)

	_, err = allocator.Allocate(shelfutils.Size{Width: 100, Height: 60})
	require.NoError(t, err)

	before := allocator.Hash(0)

	_, err = allocator.Allocate(shelfutils.Size{Width: 100, Height: 50})
	require.ErrorIs(t, err, atlas.ErrOutOfSpace)

	// A failed allocation leaves the allocator untouched and usable.
	require.NoError(t, allocator.Validate())
	require.Equal(t, before, allocator.Hash(0))

	_, err = allocator.Allocate(shelfutils.Size{Width: 100, Height: 40})
	require.NoError(t, err)
}

func TestAllocatorFreeUnknownIdIsNoOp(t *testing.T) {
	allocator, err := atlas.New(testLogger(), 100, 100, atlas.CreateOptions{})
	require.NoError(t, err)

	alloc1, err := allocator.Allocate(shelfutils.Size{Width: 10, Height: 10})
	require.NoError(t, err)

	before := allocator.Hash(0)

	allocator.Free(atlas.Allocation{ID: 99999})
	require.NoError(t, allocator.Validate())
	require.Equal(t, before, allocator.Hash(0))

	// Double free is equally harmless.
	allocator.Free(alloc1)
	afterFree := allocator.Hash(0)
	allocator.Free(alloc1)
	require.Equal(t, afterFree, allocator.Hash(0))
}

func TestAllocatorAccounting(t *testing.T) {
	allocator, err := atlas.New(testLogger(), 1024, 1024, atlas.CreateOptions{UsageThreshold: 0.5})
	require.NoError(t, err)

	require.Equal(t, 0, allocator.Coverage())
	require.Equal(t, 0, allocator.Waste())
	require.Equal(t, 0.0, allocator.WastePercentage())
	require.Equal(t, 0.0, allocator.CoveragePercentage())
	require.Equal(t, 1024*1024, allocator.UnusedArea())

	_, err = allocator.Allocate(shelfutils.Size{Width: 100, Height: 100})
	require.NoError(t, err)
	_, err = allocator.Allocate(shelfutils.Size{Width: 200, Height: 60})
	require.NoError(t, err)

	require.Equal(t, 100*100+200*60, allocator.Coverage())
	require.Equal(t, 200*40, allocator.Waste())
	require.Equal(t, float64(200*40)/float64(100*100+200*60), allocator.WastePercentage())
	require.Equal(t, float64(100*100+200*60)/float64(1024*1024), allocator.CoveragePercentage())

	// Coverage, waste, and unused area always tile the whole bin.
	require.Equal(t, 1024*1024, allocator.Coverage()+allocator.Waste()+allocator.UnusedArea())

	stats := allocator.Statistics()
	require.Equal(t, shelfutils.Statistics{
		ShelfCount:      1,
		AllocationCount: 2,
		BinArea:         1024 * 1024,
		AllocationArea:  100*100 + 200*60,
	}, stats)

	detailed := allocator.DetailedStatistics()
	require.Equal(t, 200*40, detailed.WasteArea)
	require.Equal(t, 2, detailed.UnusedRangeCount)
}

func TestAllocatorFreeThenAllocateSameSize(t *testing.T) {
	allocator, err := atlas.New(testLogger(), 100, 100, atlas.CreateOptions{})
	require.NoError(t, err)

	_, err = allocator.Allocate(shelfutils.Size{Width: 100, Height: 30})
	require.NoError(t, err)

	allocX, err := allocator.Allocate(shelfutils.Size{Width: 40, Height: 30})
	require.NoError(t, err)

	allocator.Free(allocX)

	// With no intervening mutation, a same-sized request lands on the same rectangle.
	allocY, err := allocator.Allocate(shelfutils.Size{Width: 40, Height: 30})
	require.NoError(t, err)
	require.Equal(t, allocX.Rect, allocY.Rect)
}

func TestAllocatorCoverageMonotonicWithoutFrees(t *testing.T) {
	allocator, err := atlas.New(testLogger(), 512, 512, atlas.CreateOptions{})
	require.NoError(t, err)

	previous := 0
	for i := 0; i < 100; i++ {
		_, err := allocator.Allocate(shelfutils.Size{Width: 1 + i%60, Height: 1 + i%25})
		if errors.Is(err, atlas.ErrOutOfSpace) {
			break
		}
		require.NoError(t, err)

		coverage := allocator.Coverage()
		require.GreaterOrEqual(t, coverage, previous)
		previous = coverage
	}
}

func TestAllocatorEnumerate(t *testing.T) {
	allocator, err := atlas.New(testLogger(), 100, 100, atlas.CreateOptions{UsageThreshold: 0.9})
	require.NoError(t, err)

	allocA, err := allocator.AllocateNamed(shelfutils.Size{Width: 30, Height: 40}, "a")
	require.NoError(t, err)
	allocB, err := allocator.AllocateNamed(shelfutils.Size{Width: 30, Height: 40}, "b")
	require.NoError(t, err)

	var views []atlas.BlockView
	err = allocator.Enumerate(func(view atlas.BlockView) error {
		views = append(views, view)
		return nil
	})
	require.NoError(t, err)

	require.Equal(t, []atlas.BlockView{
		{
			ShelfIndex:  0,
			ShelfY:      0,
			ShelfHeight: 40,
			ID:          allocA.ID,
			Offset:      0,
			Size:        shelfutils.Size{Width: 30, Height: 40},
			InUse:       true,
			Name:        "a",
		},
		{
			ShelfIndex:  0,
			ShelfY:      0,
			ShelfHeight: 40,
			ID:          allocB.ID,
			Offset:      30,
			Size:        shelfutils.Size{Width: 30, Height: 40},
			InUse:       true,
			Name:        "b",
		},
		{
			ShelfIndex:  0,
			ShelfY:      0,
			ShelfHeight: 40,
			ID:          views[2].ID,
			Offset:      60,
			Size:        shelfutils.Size{Width: 40, Height: 40},
			InUse:       false,
			Name:        "",
		},
	}, views)
}

func TestAllocatorClear(t *testing.T) {
	allocator, err := atlas.New(testLogger(), 100, 100, atlas.CreateOptions{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := allocator.Allocate(shelfutils.Size{Width: 10, Height: 10})
		require.NoError(t, err)
	}

	allocator.Clear()
	require.NoError(t, allocator.Validate())
	require.Equal(t, 0, allocator.Coverage())
	require.Equal(t, 0, allocator.ShelfCount())

	alloc, err := allocator.Allocate(shelfutils.Size{Width: 10, Height: 10})
	require.NoError(t, err)
	require.Equal(t, shelfutils.Position{X: 0, Y: 0}, alloc.Rect.Position)
}
