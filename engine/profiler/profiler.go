package profiler

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shadowP12/visibility-buffer/common"
	"github.com/shadowP12/visibility-buffer/engine/renderer"
)

// Snapshot summarizes one reporting interval.
type Snapshot struct {
	FPS       float64
	FrameTime time.Duration

	// Culling and batching, averaged over the frames recorded in the interval.
	VisibleClusters float64
	CulledClusters  float64
	DrawCount       float64
	Batches         float64
	Triangles       float64

	// Peak values and overflow counts over the interval.
	MaxDrawCount   int
	OverflowFrames int

	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
}

// CullRate returns the fraction of clusters culled, or 0 when nothing was recorded.
func (s Snapshot) CullRate() float64 {
	total := s.VisibleClusters + s.CulledClusters
	if total == 0 {
		return 0
	}
	return s.CulledClusters / total
}

func (s Snapshot) String() string {
	return fmt.Sprintf("FPS: %.1f (%.2f ms) | Clusters: %.0f visible, %.1f%% culled | Draws: %.1f (max %d, %d overflowed) | Batches: %.1f | Tris: %.0f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
		s.FPS, float64(s.FrameTime.Microseconds())/1000, s.VisibleClusters, s.CullRate()*100,
		s.DrawCount, s.MaxDrawCount, s.OverflowFrames, s.Batches, s.Triangles,
		s.HeapMB, s.AllocRateMB, s.GCCount, s.LastPauseUs, s.MaxPauseUs, s.SysMB)
}

// Profiler tracks frame rate, renderer statistics and memory usage, and reports them at a
// fixed interval. Safe for concurrent use.
type Profiler struct {
	mu *sync.Mutex

	logger         common.Logger
	now            func() time.Time
	updateInterval time.Duration
	onReport       func(Snapshot)

	frameCount int
	lastTime   time.Time

	recorded   int
	sum        renderer.FrameStats
	maxDraws   int
	overflowed int

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a Profiler. The update interval defaults to one second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		logger:         common.NewNopLogger(),
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// Record adds one frame's renderer statistics to the current interval.
//
// Parameters:
//   - stats: the statistics returned by renderer.Renderer.Render
func (p *Profiler) Record(stats renderer.FrameStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recorded++
	p.sum.VisibleClusters += stats.VisibleClusters
	p.sum.CulledClusters += stats.CulledClusters
	p.sum.DrawCount += stats.DrawCount
	p.sum.Batches += stats.Batches
	p.sum.Triangles += stats.Triangles
	p.maxDraws = max(p.maxDraws, stats.DrawCount)
	if stats.DroppedClusters > 0 {
		p.overflowed++
	}
}

// Tick should be called once per frame. When the update interval has elapsed it builds a
// Snapshot, logs it, passes it to the report callback and starts a new interval.
//
// Returns:
//   - Snapshot: the interval summary, valid only when reported is true
//   - bool: true if the interval closed on this tick
func (p *Profiler) Tick() (Snapshot, bool) {
	p.mu.Lock()
	p.frameCount++
	current := p.now()
	elapsed := current.Sub(p.lastTime)
	if elapsed < p.updateInterval || elapsed <= 0 {
		p.mu.Unlock()
		return Snapshot{}, false
	}

	snap := Snapshot{
		FPS:            float64(p.frameCount) / elapsed.Seconds(),
		FrameTime:      elapsed / time.Duration(p.frameCount),
		MaxDrawCount:   p.maxDraws,
		OverflowFrames: p.overflowed,
	}
	if p.recorded > 0 {
		n := float64(p.recorded)
		snap.VisibleClusters = float64(p.sum.VisibleClusters) / n
		snap.CulledClusters = float64(p.sum.CulledClusters) / n
		snap.DrawCount = float64(p.sum.DrawCount) / n
		snap.Batches = float64(p.sum.Batches) / n
		snap.Triangles = float64(p.sum.Triangles) / n
	}
	p.readMemory(&snap, elapsed)

	p.frameCount = 0
	p.lastTime = current
	p.recorded = 0
	p.sum = renderer.FrameStats{}
	p.maxDraws = 0
	p.overflowed = 0
	onReport := p.onReport
	p.mu.Unlock()

	p.logger.Infof("%s", snap)
	if onReport != nil {
		onReport(snap)
	}
	return snap, true
}

// readMemory fills the memory fields from the runtime. PauseNs is a circular buffer of the
// last 256 GC pauses.
func (p *Profiler) readMemory(snap *Snapshot, elapsed time.Duration) {
	runtime.ReadMemStats(&p.memStats)
	snap.HeapMB = float64(p.memStats.Alloc) / 1024 / 1024
	snap.SysMB = float64(p.memStats.Sys) / 1024 / 1024
	snap.AllocRateMB = float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	snap.GCCount = gcCount
	if gcCount > 0 {
		snap.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			snap.MaxPauseUs = max(snap.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
}
