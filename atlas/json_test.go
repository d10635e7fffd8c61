package atlas_test

import (
	"encoding/json"
	"testing"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/stretchr/testify/require"
	"github.com/texturekit/shelfpack/atlas"
	"github.com/texturekit/shelfpack/shelfutils"
)

func TestPrintDetailedMap(t *testing.T) {
	allocator, err := atlas.New(testLogger(), 256, 256, atlas.CreateOptions{UsageThreshold: 0.5})
	require.NoError(t, err)

	_, err = allocator.AllocateNamed(shelfutils.Size{Width: 100, Height: 100}, "big")
	require.NoError(t, err)
	_, err = allocator.Allocate(shelfutils.Size{Width: 50, Height: 60})
	require.NoError(t, err)

	writer := jwriter.NewWriter()
	allocator.PrintDetailedMap(&writer)
	require.NoError(t, writer.Error())

	var parsed struct {
		General struct {
			BinWidth        int
			BinHeight       int
			UsageThreshold  float64
			ShelfCount      int
			AllocationCount int
			CoverageArea    int
			WasteArea       int
		}
		Bin struct {
			TotalArea    int
			UnusedArea   int
			Allocations  int
			UnusedRanges int
			Blocks       []struct {
				Shelf  int
				Offset int
				Y      int
				Width  int
				Height int
				Type   string
				Name   string
			}
		}
	}
	require.NoError(t, json.Unmarshal(writer.Bytes(), &parsed))

	require.Equal(t, 256, parsed.General.BinWidth)
	require.Equal(t, 256, parsed.General.BinHeight)
	require.Equal(t, 0.5, parsed.General.UsageThreshold)
	require.Equal(t, 1, parsed.General.ShelfCount)
	require.Equal(t, 2, parsed.General.AllocationCount)
	require.Equal(t, 100*100+50*60, parsed.General.CoverageArea)
	require.Equal(t, 50*40, parsed.General.WasteArea)

	require.Equal(t, 256*256, parsed.Bin.TotalArea)
	require.Equal(t, 256*256-100*100-50*60, parsed.Bin.UnusedArea)
	require.Equal(t, 2, parsed.Bin.Allocations)
	require.Len(t, parsed.Bin.Blocks, 3)

	require.Equal(t, "Allocation", parsed.Bin.Blocks[0].Type)
	require.Equal(t, "big", parsed.Bin.Blocks[0].Name)
	require.Equal(t, 100, parsed.Bin.Blocks[0].Width)
	require.Equal(t, "Allocation", parsed.Bin.Blocks[1].Type)
	require.Equal(t, 100, parsed.Bin.Blocks[1].Offset)
	require.Equal(t, "Free", parsed.Bin.Blocks[2].Type)
	require.Equal(t, 150, parsed.Bin.Blocks[2].Offset)
	require.Equal(t, 106, parsed.Bin.Blocks[2].Width)
}
