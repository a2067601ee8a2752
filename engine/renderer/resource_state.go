package renderer

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shadowP12/visibility-buffer/common"
)

var (
	// ErrMissingBarrier is returned when a resource is used in a state it was not transitioned to.
	ErrMissingBarrier = errors.New("missing resource barrier")

	// ErrUnknownResource is returned for resources never registered with the tracker.
	ErrUnknownResource = errors.New("unknown resource")
)

// ResourceState is a bit set of the ways a GPU resource may currently be accessed.
type ResourceState uint32

const (
	StateUndefined ResourceState = 0

	// StateCopyDest allows queue writes.
	StateCopyDest ResourceState = 1 << iota
	// StateUnorderedAccess allows compute shader writes.
	StateUnorderedAccess
	// StateShaderRead allows shader reads through uniform, storage or texture bindings.
	StateShaderRead
	// StateIndirectArgument allows reads as indirect draw arguments.
	StateIndirectArgument
	// StateRenderTarget allows color attachment writes.
	StateRenderTarget
	// StateDepthWrite allows depth attachment reads and writes.
	StateDepthWrite
	// StateDepthRead allows depth testing without writes.
	StateDepthRead
	// StatePresent hands the image to the presentation engine.
	StatePresent
)

var stateNames = []struct {
	state ResourceState
	name  string
}{
	{StateCopyDest, "copy_dest"},
	{StateUnorderedAccess, "unordered_access"},
	{StateShaderRead, "shader_read"},
	{StateIndirectArgument, "indirect_argument"},
	{StateRenderTarget, "render_target"},
	{StateDepthWrite, "depth_write"},
	{StateDepthRead, "depth_read"},
	{StatePresent, "present"},
}

func (s ResourceState) String() string {
	if s == StateUndefined {
		return "undefined"
	}
	var parts []string
	for _, n := range stateNames {
		if s&n.state != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Contains reports whether every bit of want is set in s.
func (s ResourceState) Contains(want ResourceState) bool {
	return s&want == want
}

// ResourceID names a tracked resource.
type ResourceID string

// Barrier is one recorded state transition.
type Barrier struct {
	Resource ResourceID
	From     ResourceState
	To       ResourceState
}

// ResourceTracker records the current state of every frame resource. Passes declare the state
// they need with Require and the frame schedule moves resources between states with Transition.
type ResourceTracker struct {
	mu       sync.Mutex
	logger   common.Logger
	states   map[ResourceID]ResourceState
	barriers []Barrier
}

// NewResourceTracker creates an empty tracker.
//
// Parameters:
//   - logger: receives one debug line per transition; nil disables logging
//
// Returns:
//   - *ResourceTracker: the tracker
func NewResourceTracker(logger common.Logger) *ResourceTracker {
	if logger == nil {
		logger = common.NewNopLogger()
	}
	return &ResourceTracker{
		logger: logger,
		states: make(map[ResourceID]ResourceState),
	}
}

// Register starts tracking a resource in its initial state. Registering again resets the state.
func (t *ResourceTracker) Register(id ResourceID, initial ResourceState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states[id] = initial
}

// Transition moves a resource to a new state and records the barrier. A transition to the
// current state records nothing.
//
// Parameters:
//   - id: the resource
//   - to: the new state
//
// Returns:
//   - error: ErrUnknownResource if id is not registered
func (t *ResourceTracker) Transition(id ResourceID, to ResourceState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	from, ok := t.states[id]
	if !ok {
		return fmt.Errorf("transition %s: %w", id, ErrUnknownResource)
	}
	if from == to {
		return nil
	}
	t.states[id] = to
	t.barriers = append(t.barriers, Barrier{Resource: id, From: from, To: to})
	t.logger.Debugf("barrier %s: %s -> %s", id, from, to)
	return nil
}

// Require checks that a resource is in a state allowing the given access.
//
// Parameters:
//   - id: the resource
//   - want: the access about to happen
//
// Returns:
//   - error: ErrMissingBarrier when the current state lacks any bit of want, ErrUnknownResource
//     if id is not registered
func (t *ResourceTracker) Require(id ResourceID, want ResourceState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur, ok := t.states[id]
	if !ok {
		return fmt.Errorf("require %s: %w", id, ErrUnknownResource)
	}
	if !cur.Contains(want) {
		return fmt.Errorf("%s is %s, needs %s: %w", id, cur, want, ErrMissingBarrier)
	}
	return nil
}

// State returns the current state of a resource.
func (t *ResourceTracker) State(id ResourceID) (ResourceState, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.states[id]
	return s, ok
}

// Barriers returns the transitions recorded since the last ResetBarriers.
func (t *ResourceTracker) Barriers() []Barrier {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Barrier(nil), t.barriers...)
}

// ResetBarriers clears the recorded transitions, keeping resource states.
func (t *ResourceTracker) ResetBarriers() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.barriers = t.barriers[:0]
}
