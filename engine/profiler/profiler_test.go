package profiler

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/renderer"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestProfiler_TickReportsInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	var logs bytes.Buffer
	var reports []Snapshot
	p := NewProfiler(
		WithClock(clock.now),
		WithInterval(time.Second),
		WithLogger(common.NewWriterLogger("profiler", false, &logs, &logs)),
		WithReportCallback(func(s Snapshot) { reports = append(reports, s) }),
	)

	p.Record(renderer.FrameStats{VisibleClusters: 30, CulledClusters: 10, DrawCount: 4, Batches: 1, Triangles: 100})
	clock.t = clock.t.Add(400 * time.Millisecond)
	_, ok := p.Tick()
	assert.False(t, ok)

	p.Record(renderer.FrameStats{VisibleClusters: 10, CulledClusters: 30, DrawCount: 8, Batches: 3, Triangles: 300, DroppedClusters: 2})
	clock.t = clock.t.Add(600 * time.Millisecond)
	snap, ok := p.Tick()
	require.True(t, ok)

	assert.InDelta(t, 2.0, snap.FPS, 1e-9)
	assert.Equal(t, 500*time.Millisecond, snap.FrameTime)
	assert.InDelta(t, 20, snap.VisibleClusters, 1e-9)
	assert.InDelta(t, 0.5, snap.CullRate(), 1e-9)
	assert.InDelta(t, 6, snap.DrawCount, 1e-9)
	assert.InDelta(t, 2, snap.Batches, 1e-9)
	assert.Equal(t, 8, snap.MaxDrawCount)
	assert.Equal(t, 1, snap.OverflowFrames)
	require.Len(t, reports, 1)
	assert.Equal(t, snap, reports[0])
	assert.Contains(t, logs.String(), "FPS: 2.0")

	// the next interval starts empty
	clock.t = clock.t.Add(time.Second)
	snap, ok = p.Tick()
	require.True(t, ok)
	assert.Zero(t, snap.VisibleClusters)
	assert.Zero(t, snap.MaxDrawCount)
	assert.InDelta(t, 1.0, snap.FPS, 1e-9)
}

func TestSnapshot_CullRateEmpty(t *testing.T) {
	assert.Zero(t, Snapshot{}.CullRate())
	assert.Contains(t, Snapshot{}.String(), "FPS: 0.0")
}
