package svg_test

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/texturekit/shelfpack/atlas"
	"github.com/texturekit/shelfpack/atlas/svg"
	"github.com/texturekit/shelfpack/shelfutils"
	"golang.org/x/exp/slog"
)

func buildRenderFixture(t *testing.T) *atlas.Allocator {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout))
	allocator, err := atlas.New(logger, 100, 100, atlas.CreateOptions{UsageThreshold: 0.5})
	require.NoError(t, err)

	_, err = allocator.AllocateNamed(shelfutils.Size{Width: 40, Height: 30}, "glyph<1>")
	require.NoError(t, err)

	// A shorter rectangle on the same shelf, so the render has a waste strip.
	_, err = allocator.AllocateNamed(shelfutils.Size{Width: 30, Height: 20}, "b")
	require.NoError(t, err)

	return allocator
}

func render(t *testing.T, allocator *atlas.Allocator, options svg.Options) string {
	t.Helper()

	var builder strings.Builder
	err := svg.Render(&builder, allocator, options)
	require.NoError(t, err)
	return builder.String()
}

func TestRenderDefaults(t *testing.T) {
	allocator := buildRenderFixture(t)

	doc := render(t, allocator, svg.DefaultOptions())

	require.True(t, strings.HasPrefix(doc, "<svg "))
	require.True(t, strings.HasSuffix(doc, "</svg>\n"))
	require.Contains(t, doc, `viewBox="0 0 100 100"`)

	require.Contains(t, doc, `<rect x="0" y="0" width="40" height="30"`)
	require.Contains(t, doc, `<rect x="40" y="0" width="30" height="20"`)

	// The short block's waste strip sits between its top and the shelf top.
	require.Contains(t, doc, `<rect x="40" y="20" width="30" height="10" fill="#000" fill-opacity="0.25"/>`)

	// Names are drawn, with markup characters escaped.
	require.Contains(t, doc, ">glyph&lt;1&gt;</text>")

	// Free blocks are not rendered by default.
	require.NotContains(t, doc, `fill="none"`)
}

func TestRenderUnusedAndStroke(t *testing.T) {
	allocator := buildRenderFixture(t)

	options := svg.DefaultOptions()
	options.Unused = true
	options.Stroke = true

	doc := render(t, allocator, options)

	// The shelf tail is a free block 30 wide at offset 70.
	require.Contains(t, doc, `<rect x="70" y="0" width="30" height="30" fill="none" stroke=`)
	require.Contains(t, doc, `stroke="#333"`)
}

func TestRenderCoords(t *testing.T) {
	allocator := buildRenderFixture(t)

	options := svg.Options{Coords: true}
	doc := render(t, allocator, options)

	require.Contains(t, doc, ">40,0</text>")
	require.NotContains(t, doc, "glyph")
}

func TestRenderDoesNotMutate(t *testing.T) {
	allocator := buildRenderFixture(t)

	before := allocator.Hash(0)
	_ = render(t, allocator, svg.DefaultOptions())
	options := svg.DefaultOptions()
	options.Unused = true
	options.Coords = true
	options.Stroke = true
	_ = render(t, allocator, options)

	require.NoError(t, allocator.Validate())
	require.Equal(t, before, allocator.Hash(0))
}
