// Package svg renders an atlas.Allocator's occupancy as an SVG document. It is a pure
// formatter over the allocator's block enumeration and never mutates allocator state.
package svg

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/texturekit/shelfpack/atlas"
)

// Options configures the rendering.
type Options struct {
	// Waste renders the strip between each in-use block's top and its shelf's top as a
	// translucent overlay
	Waste bool
	// Names draws each in-use block's name centered on the block
	Names bool
	// Coords draws per-block coordinate labels at the top-left corner
	Coords bool
	// Stroke outlines each rectangle
	Stroke bool
	// Unused also renders free blocks
	Unused bool
}

// DefaultOptions returns the rendering defaults: waste overlays and names on, everything
// else off.
func DefaultOptions() Options {
	return Options{
		Waste: true,
		Names: true,
	}
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

// blockFill derives a stable fill color from the block id, so a block keeps its color
// across renders of the same layout.
func blockFill(view atlas.BlockView) string {
	hue := (uint64(view.ID) * 137) % 360
	return fmt.Sprintf("hsl(%d, 65%%, 62%%)", hue)
}

func labelSize(view atlas.BlockView) int {
	size := view.Size.Height / 3
	if size > 14 {
		size = 14
	}
	if size < 5 {
		size = 5
	}
	return size
}

// Render writes an SVG document describing the allocator's current occupancy.
func Render(w io.Writer, a *atlas.Allocator, options Options) error {
	_, err := fmt.Fprintf(w,
		"<svg xmlns=\"http://www.w3.org/2000/svg\" width=\"%d\" height=\"%d\" viewBox=\"0 0 %d %d\">\n",
		a.Width(), a.Height(), a.Width(), a.Height())
	if err != nil {
		return errors.Wrap(err, "failed to write the svg header")
	}

	err = a.Enumerate(func(view atlas.BlockView) error {
		if !view.InUse && !options.Unused {
			return nil
		}

		return renderBlock(w, view, options)
	})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, "</svg>")
	return errors.Wrap(err, "failed to write the svg footer")
}

func renderBlock(w io.Writer, view atlas.BlockView, options Options) error {
	fill := blockFill(view)
	if !view.InUse {
		fill = "none"
	}

	stroke := ""
	if options.Stroke || !view.InUse {
		stroke = " stroke=\"#333\" stroke-width=\"1\""
	}

	_, err := fmt.Fprintf(w, "  <rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\" fill=\"%s\"%s/>\n",
		view.Offset, view.ShelfY, view.Size.Width, view.Size.Height, fill, stroke)
	if err != nil {
		return errors.Wrap(err, "failed to write a block rect")
	}

	if options.Waste && view.InUse && view.Size.Height < view.ShelfHeight {
		_, err = fmt.Fprintf(w, "  <rect x=\"%d\" y=\"%d\" width=\"%d\" height=\"%d\" fill=\"#000\" fill-opacity=\"0.25\"/>\n",
			view.Offset, view.ShelfY+view.Size.Height, view.Size.Width, view.ShelfHeight-view.Size.Height)
		if err != nil {
			return errors.Wrap(err, "failed to write a waste overlay")
		}
	}

	if options.Names && view.InUse && view.Name != "" {
		_, err = fmt.Fprintf(w, "  <text x=\"%d\" y=\"%d\" font-size=\"%d\" text-anchor=\"middle\" dominant-baseline=\"middle\">%s</text>\n",
			view.Offset+view.Size.Width/2, view.ShelfY+view.Size.Height/2, labelSize(view), textEscaper.Replace(view.Name))
		if err != nil {
			return errors.Wrap(err, "failed to write a name label")
		}
	}

	if options.Coords {
		_, err = fmt.Fprintf(w, "  <text x=\"%d\" y=\"%d\" font-size=\"%d\">%d,%d</text>\n",
			view.Offset+1, view.ShelfY+labelSize(view), labelSize(view), view.Offset, view.ShelfY)
		if err != nil {
			return errors.Wrap(err, "failed to write a coordinate label")
		}
	}

	return nil
}
