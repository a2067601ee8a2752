package profiler

import (
	"time"

	"github.com/shadowP12/visibility-buffer/common"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(p *Profiler)

// WithLogger sets the logger each interval summary is written to. A nil logger is ignored.
func WithLogger(logger common.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithInterval sets the reporting interval. Non-positive values keep the default.
//
// Parameters:
//   - interval: time between reports
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithInterval(interval time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if interval > 0 {
			p.updateInterval = interval
		}
	}
}

// WithReportCallback sets a function receiving every interval summary, such as a window
// title updater.
func WithReportCallback(callback func(Snapshot)) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.onReport = callback
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}
