package atlas

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/texturekit/shelfpack/shelfutils"
)

// PrintDetailedMap writes the allocator's full state into the provided JSON writer: bin
// dimensions, summary statistics, and one entry per block in layout order.
func (a *Allocator) PrintDetailedMap(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	var stats shelfutils.DetailedStatistics
	stats.Clear()
	a.metadata.AddDetailedStatistics(&stats)

	generalObj := objState.Name("General").Object()
	generalObj.Name("BinWidth").Int(a.metadata.BinWidth())
	generalObj.Name("BinHeight").Int(a.metadata.BinHeight())
	generalObj.Name("UsageThreshold").Float64(a.metadata.UsageThreshold())
	generalObj.Name("ShelfCount").Int(stats.ShelfCount)
	generalObj.Name("AllocationCount").Int(stats.AllocationCount)
	generalObj.Name("CoverageArea").Int(stats.AllocationArea)
	generalObj.Name("WasteArea").Int(stats.WasteArea)
	generalObj.Name("UnusedRanges").Int(stats.UnusedRangeCount)
	generalObj.End()

	binObj := objState.Name("Bin").Object()
	// The blocks go first: BlockJsonData receives a copy of binObj, so the keys it writes
	// do not mark binObj as non-empty, and a key written after them would lack its comma.
	a.printDetailedMapBlocks(&binObj)
	a.metadata.BlockJsonData(binObj)
	binObj.End()
}

func (a *Allocator) printDetailedMapBlocks(json *jwriter.ObjectState) {
	arrayState := json.Name("Blocks").Array()
	defer arrayState.End()

	_ = a.Enumerate(func(view BlockView) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Shelf").Int(view.ShelfIndex)
		obj.Name("Offset").Int(view.Offset)
		obj.Name("Y").Int(view.ShelfY)
		obj.Name("Width").Int(view.Size.Width)
		obj.Name("Height").Int(view.Size.Height)

		if view.InUse {
			obj.Name("Type").String("Allocation")
			obj.Name("Id").Int(int(view.ID))
			if view.Name != "" {
				obj.Name("Name").String(view.Name)
			}
		} else {
			obj.Name("Type").String("Free")
		}

		return nil
	})
}
