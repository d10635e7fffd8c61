package metadata_test

import (
	"testing"

	"github.com/texturekit/shelfpack/shelfutils"
	"github.com/texturekit/shelfpack/shelfutils/metadata"
)

// FuzzShelfOperations drives the metadata with an arbitrary operation stream and checks
// the structural invariants and the accounting identity after every step.
func FuzzShelfOperations(f *testing.F) {
	f.Add([]byte{0x10, 0x10, 0x20, 0x08, 0x00, 0xff, 0x01})
	f.Add([]byte{0x40, 0x40, 0x40, 0x40, 0x01, 0x01, 0x01, 0x01, 0x00, 0x00})

	f.Fuzz(func(t *testing.T, ops []byte) {
		shelves := metadata.NewShelfBlockMetadata(0.8)
		shelves.Init(256, 256)

		var live []metadata.BlockAllocationHandle

		for i := 0; i+1 < len(ops); i += 2 {
			first, second := ops[i], ops[i+1]

			if first%4 == 0 && len(live) > 0 {
				victim := int(second) % len(live)
				if err := shelves.Free(live[victim]); err != nil {
					t.Fatal(err)
				}
				live[victim] = live[len(live)-1]
				live = live[:len(live)-1]
			} else {
				size := shelfutils.Size{
					Width:  1 + int(first)%128,
					Height: 1 + int(second)%96,
				}
				success, req, err := shelves.CreateAllocationRequest(size)
				if err != nil {
					t.Fatal(err)
				}
				if success {
					handle, err := shelves.Alloc(req, nil)
					if err != nil {
						t.Fatal(err)
					}
					live = append(live, handle)
				}
			}

			if err := shelves.Validate(); err != nil {
				t.Fatal(err)
			}
			total := shelves.Coverage() + shelves.Waste() + shelves.SumFreeArea()
			if total != shelves.BinArea() {
				t.Fatalf("accounting identity broken: coverage+waste+free = %d, bin area = %d", total, shelves.BinArea())
			}
		}

		if shelves.AllocationCount() != len(live) {
			t.Fatalf("allocation count %d does not match the %d live handles", shelves.AllocationCount(), len(live))
		}
	})
}
