package subprocess

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/capsoftware/cap-media-server/config"
)

// WithAbsoluteTimeout derives a context that is cancelled after d, matching
// the "race the task against timeoutMs" absolute watchdog from spec §4.1.
func WithAbsoluteTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}

// StallWatchdog fires if Reset is not called within the current duration.
// Crossing the near-complete threshold shortens the bound, per spec §4.1
// ("Once measured progress reaches ≥98%, the timeout shortens to 60s").
// Grounded on progress/progress.go's clock.Clock-based timer usage
// (benbjohnson/clock), generalized from a reporting ticker into a
// reset-on-activity watchdog.
type StallWatchdog struct {
	clk   clock.Clock
	timer *clock.Timer

	mu       sync.Mutex
	fired    chan struct{}
	fireOnce sync.Once
	stopped  bool
}

// NewStallWatchdog arms a watchdog for the given duration.
func NewStallWatchdog(clk clock.Clock, initial time.Duration) *StallWatchdog {
	if clk == nil {
		clk = config.Clock
	}
	w := &StallWatchdog{clk: clk, fired: make(chan struct{})}
	w.timer = clk.Timer(initial)
	go w.wait()
	return w
}

func (w *StallWatchdog) wait() {
	<-w.timer.C
	w.fireOnce.Do(func() { close(w.fired) })
}

// Fired is closed once the watchdog expires without being Reset in time.
func (w *StallWatchdog) Fired() <-chan struct{} {
	return w.fired
}

// Reset rearms the watchdog for d, e.g. shortened to
// config.StallTimeoutNearComplete once progress crosses
// config.NearCompleteThreshold.
func (w *StallWatchdog) Reset(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if !w.timer.Stop() {
		select {
		case <-w.timer.C:
		default:
		}
	}
	w.timer.Reset(d)
}

// Stop disarms the watchdog permanently.
func (w *StallWatchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	w.timer.Stop()
}

// StallBoundFor returns the stall timeout that applies at the given
// progress fraction (0..1), per spec §4.1's near-complete shortening rule.
func StallBoundFor(progress float64) time.Duration {
	if progress >= config.NearCompleteThreshold {
		return config.StallTimeoutNearComplete
	}
	return config.StallTimeout
}
