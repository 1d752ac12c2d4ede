package hal

import (
	"sync"

	"github.com/pandagen/kernel/core"
)

// SimTimer is the deterministic TimerDevice used by the simulated
// kernel. It advances only when AdvanceTicks is called explicitly by
// the host loop, never on its own.
type SimTimer struct {
	mu  sync.Mutex
	now core.Tick

	// NanosPerTick is informational only; the kernel never converts
	// ticks to wall-clock time on its own, but host code rendering a
	// human-readable trace needs the configured resolution.
	NanosPerTick uint64
}

// NewSimTimer returns a timer starting at tick 0 with the given
// nanosecond-per-tick resolution (spec §4.F default: 1000, i.e. 1us).
func NewSimTimer(nanosPerTick uint64) *SimTimer {
	if nanosPerTick == 0 {
		nanosPerTick = 1000
	}
	return &SimTimer{NanosPerTick: nanosPerTick}
}

func (t *SimTimer) PollTicks() core.Tick {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// AdvanceTicks moves the timer forward by n ticks and returns the new
// value. It is the only way SimTimer's value ever changes.
func (t *SimTimer) AdvanceTicks(n uint64) core.Tick {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now += core.Tick(n)
	return t.now
}
