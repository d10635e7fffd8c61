// Command atlasdemo packs a seeded-random rectangle sequence into a shelf atlas and
// writes the resulting layout as SVG, optionally alongside a JSON state dump.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/texturekit/shelfpack/atlas"
	"github.com/texturekit/shelfpack/atlas/svg"
	"github.com/texturekit/shelfpack/shelfutils"
	"golang.org/x/exp/slog"
)

var (
	binWidth  = flag.Int("width", 1024, "bin width")
	binHeight = flag.Int("height", 1024, "bin height")
	threshold = flag.Float64("threshold", 0.8, "usage threshold for new-shelf decisions")
	count     = flag.Int("count", 256, "number of random allocation attempts")
	churn     = flag.Float64("churn", 0.25, "chance of freeing a random live allocation after each allocation attempt")
	seed      = flag.Int64("seed", 1, "seed for the random rectangle sequence")
	svgPath   = flag.String("svg", "atlas.svg", "output path for the SVG rendering")
	jsonPath  = flag.String("json", "", "optional output path for the JSON state dump")
	unused    = flag.Bool("unused", false, "also render free blocks in the SVG")
	coords    = flag.Bool("coords", false, "draw coordinate labels in the SVG")
	stroke    = flag.Bool("stroke", false, "outline rectangles in the SVG")
)

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stderr))

	if err := run(logger); err != nil {
		logger.Error("atlasdemo failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	allocator, err := atlas.New(logger, *binWidth, *binHeight, atlas.CreateOptions{
		UsageThreshold: *threshold,
	})
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))

	var live []atlas.Allocation
	var placed, rejected, freed int

	for i := 0; i < *count; i++ {
		size := shelfutils.Size{
			Width:  4 + rng.Intn(120),
			Height: 4 + rng.Intn(60),
		}

		alloc, err := allocator.AllocateNamed(size, fmt.Sprintf("r%d", i))
		if errors.Is(err, atlas.ErrOutOfSpace) {
			rejected++
		} else if err != nil {
			return err
		} else {
			placed++
			live = append(live, alloc)
		}

		if len(live) > 0 && rng.Float64() < *churn {
			victim := rng.Intn(len(live))
			allocator.Free(live[victim])
			live[victim] = live[len(live)-1]
			live = live[:len(live)-1]
			freed++
		}
	}

	if err := allocator.Validate(); err != nil {
		return err
	}

	logger.Info("packed",
		slog.Int("Placed", placed),
		slog.Int("Rejected", rejected),
		slog.Int("Freed", freed),
		slog.Int("Coverage", allocator.Coverage()),
		slog.Int("Waste", allocator.Waste()),
		slog.Float64("CoveragePercentage", allocator.CoveragePercentage()),
		slog.String("Hash", fmt.Sprintf("%016x", allocator.Hash(0))),
	)

	out, err := os.Create(*svgPath)
	if err != nil {
		return errors.Wrap(err, "failed to create the svg output file")
	}
	defer func() {
		_ = out.Close()
	}()

	options := svg.DefaultOptions()
	options.Unused = *unused
	options.Coords = *coords
	options.Stroke = *stroke

	if err := svg.Render(out, allocator, options); err != nil {
		return err
	}
	logger.Info("wrote svg", slog.String("Path", *svgPath))

	if *jsonPath != "" {
		writer := jwriter.NewWriter()
		allocator.PrintDetailedMap(&writer)
		if err := writer.Error(); err != nil {
			return errors.Wrap(err, "failed to build the json state dump")
		}
		if err := os.WriteFile(*jsonPath, writer.Bytes(), 0o644); err != nil {
			return errors.Wrap(err, "failed to write the json state dump")
		}
		logger.Info("wrote json", slog.String("Path", *jsonPath))
	}

	return nil
}
