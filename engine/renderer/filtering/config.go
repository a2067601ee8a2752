package filtering

import (
	"errors"
	"fmt"
)

// ErrDrawCapacityExceeded is returned by BuildPlan under OverflowFail when a frame needs more
// draw commands than the configured capacity.
var ErrDrawCapacityExceeded = errors.New("draw command capacity exceeded")

// OverflowPolicy selects what happens when a frame needs more draw commands than are available.
type OverflowPolicy int

const (
	// OverflowDrop skips the clusters of every draw past capacity for the current frame.
	OverflowDrop OverflowPolicy = iota

	// OverflowFail aborts the frame's plan with ErrDrawCapacityExceeded.
	OverflowFail
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowDrop:
		return "drop"
	case OverflowFail:
		return "fail"
	default:
		return fmt.Sprintf("OverflowPolicy(%d)", int(p))
	}
}

// ParseOverflowPolicy parses "drop" or "fail".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch s {
	case "", "drop":
		return OverflowDrop, nil
	case "fail":
		return OverflowFail, nil
	default:
		return OverflowDrop, fmt.Errorf("unknown overflow policy %q", s)
	}
}

// Config controls how clusters are scanned and batched each frame.
type Config struct {
	// BatchCount is the maximum number of entries per filter dispatch.
	BatchCount int

	// MaxDrawCommands is the number of draw command slots; it also sizes the draw buffers.
	MaxDrawCommands int

	// Overflow selects the behavior when MaxDrawCommands is reached.
	Overflow OverflowPolicy

	// FrustumCulling additionally rejects clusters whose bounds lie outside the view frustum.
	FrustumCulling bool

	// PackMeshes lets one batch carry clusters of several meshes; a mesh boundary then only
	// closes the current draw instead of flushing the batch.
	PackMeshes bool
}

// DefaultConfig returns the standard capacities with OverflowDrop.
func DefaultConfig() Config {
	return Config{
		BatchCount:      BatchCount,
		MaxDrawCommands: MaxDrawCommands,
		Overflow:        OverflowDrop,
	}
}

// Validate reports configurations the kernels cannot execute.
//
// Returns:
//   - error: nil when the configuration is usable
func (c Config) Validate() error {
	if c.BatchCount <= 0 || c.BatchCount > BatchCount {
		return fmt.Errorf("batch count %d outside (0, %d]", c.BatchCount, BatchCount)
	}
	if c.MaxDrawCommands <= 0 {
		return fmt.Errorf("max draw commands must be positive, got %d", c.MaxDrawCommands)
	}
	if c.Overflow != OverflowDrop && c.Overflow != OverflowFail {
		return fmt.Errorf("invalid overflow policy %v", c.Overflow)
	}
	return nil
}
