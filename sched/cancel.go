package sched

import (
	"sync"

	"github.com/pandagen/kernel/core"
)

// CancellationToken is a shared flag with a reason, checked at explicit
// safe points by any operation that can block (spec §4.F, §5). There is
// no hidden preemption via exceptions: callers must check it themselves.
type CancellationToken struct {
	mu        sync.Mutex
	cancelled bool
	reason    string
}

// NewCancellationToken returns a token in the not-cancelled state.
func NewCancellationToken() *CancellationToken { return &CancellationToken{} }

// Cancel marks the token cancelled with reason. Idempotent.
func (c *CancellationToken) Cancel(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = true
	c.reason = reason
}

// Cancelled reports whether Cancel has been called.
func (c *CancellationToken) Cancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Check returns CancelRequested if the token has fired, nil otherwise.
// Callers invoke this at safe points (spec §5); a cancelled operation
// must not have committed any side effect once Check returns non-nil.
func (c *CancellationToken) Check() *core.KernelError {
	if c.Cancelled() {
		return core.CancelRequested()
	}
	return nil
}

// Deadline is an absolute tick a pipeline compares itself against
// between stages (spec §4.F, §5).
type Deadline struct {
	At core.Tick
}

// Expired reports whether now has passed the deadline.
func (d Deadline) Expired(now core.Tick) bool { return now >= d.At }
