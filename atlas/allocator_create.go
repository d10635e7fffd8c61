package atlas

import (
	"github.com/cockroachdb/errors"
	"github.com/texturekit/shelfpack/shelfutils/metadata"
	"golang.org/x/exp/slog"
)

const (
	// defaultUsageThreshold is the value that is used as the UsageThreshold when none is
	// provided via CreateOptions.
	defaultUsageThreshold = 0.8
)

// CreateOptions contains optional settings when creating an allocator
type CreateOptions struct {
	// UsageThreshold is the height usage ratio below which a rectangle opens a new shelf
	// rather than reusing a taller existing one, provided vertical budget remains. Leave it
	// at 0 for the default of 0.8. Values are clamped to [0, 1].
	UsageThreshold float64
}

// New creates a new Allocator over an empty bin of the provided dimensions.
//
// width, height - The bin dimensions, fixed for the allocator's lifetime. Both must be
// at least 1.
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, width, height int, options CreateOptions) (*Allocator, error) {
	if width < 1 || height < 1 {
		return nil, errors.Newf("bin dimensions must be at least 1x1, but %dx%d was requested", width, height)
	}

	if logger == nil {
		logger = slog.Default()
	}

	usageThreshold := options.UsageThreshold
	if usageThreshold == 0 {
		usageThreshold = defaultUsageThreshold
	}

	meta := metadata.NewShelfBlockMetadata(usageThreshold)
	meta.Init(width, height)

	return &Allocator{
		logger:   logger,
		metadata: meta,
	}, nil
}
