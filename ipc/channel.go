package ipc

import (
	"sync"

	"github.com/pandagen/kernel/core"
)

// Channel is a bounded FIFO of envelopes (spec §3 "Channel", §4.D).
// Access is gated by a channel capability one layer up (package
// kernel); Channel itself only enforces capacity, sender membership,
// and schema compatibility — the three checks spec §4.D lists as
// independent of capability possession.
type Channel struct {
	mu sync.Mutex

	id             core.ChannelId
	capacity       int
	allowedSenders map[core.ExecutionId]bool
	allowedSchemas map[string]SchemaPolicy // keyed by Envelope.Action
	defaultSchema  SchemaPolicy

	queue []Envelope
}

// NewChannel constructs a channel with the given capacity and sender
// allowlist. allowedSchemas maps action name to the SchemaPolicy that
// governs it; actions absent from the map fall back to defaultSchema.
func NewChannel(id core.ChannelId, capacity int, allowedSenders []core.ExecutionId, defaultSchema SchemaPolicy, allowedSchemas map[string]SchemaPolicy) *Channel {
	senders := make(map[core.ExecutionId]bool, len(allowedSenders))
	for _, s := range allowedSenders {
		senders[s] = true
	}
	if allowedSchemas == nil {
		allowedSchemas = make(map[string]SchemaPolicy)
	}
	return &Channel{
		id:             id,
		capacity:       capacity,
		allowedSenders: senders,
		allowedSchemas: allowedSchemas,
		defaultSchema:  defaultSchema,
	}
}

func (c *Channel) ID() core.ChannelId { return c.id }
func (c *Channel) Capacity() int      { return c.capacity }

func (c *Channel) policyFor(action string) SchemaPolicy {
	if p, ok := c.allowedSchemas[action]; ok {
		return p
	}
	return c.defaultSchema
}

// CheckSend validates an enqueue attempt without mutating the queue:
// sender membership, schema compatibility, then capacity. Order matches
// spec §4.D's numbered checks (1 is capability validity, checked by the
// caller before this).
func (c *Channel) CheckSend(env Envelope, senderExec core.ExecutionId) *core.KernelError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkSendLocked(env, senderExec)
}

func (c *Channel) checkSendLocked(env Envelope, senderExec core.ExecutionId) *core.KernelError {
	if len(c.allowedSenders) > 0 && !c.allowedSenders[senderExec] {
		return core.PermissionDenied("sender not in allowed_senders")
	}
	if err := c.policyFor(env.Action).Validate(env.SchemaVersion); err != nil {
		return err
	}
	if len(c.queue) >= c.capacity {
		return core.ChannelFull()
	}
	return nil
}

// Enqueue appends env to the tail, after re-validating under lock
// (spec §8 invariant 3: capacity is checked atomically with append).
func (c *Channel) Enqueue(env Envelope, senderExec core.ExecutionId) *core.KernelError {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkSendLocked(env, senderExec); err != nil {
		return err
	}
	c.queue = append(c.queue, env)
	return nil
}

// EnqueueReordered appends env and then swaps the new head with the
// deepest (tail) element, per spec §4.D's "reorder ... (swap head with
// deeper element)".
func (c *Channel) EnqueueReordered(env Envelope, senderExec core.ExecutionId) *core.KernelError {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkSendLocked(env, senderExec); err != nil {
		return err
	}
	c.queue = append(c.queue, env)
	if len(c.queue) >= 2 {
		last := len(c.queue) - 1
		c.queue[0], c.queue[last] = c.queue[last], c.queue[0]
	}
	return nil
}

// deliverDelayed appends env to the tail unconditionally, used only by
// Bus.DrainDelayed once an envelope has already cleared the injector.
func (c *Channel) deliverDelayed(env Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, env)
}

// Receive pops the head envelope, if any.
func (c *Channel) Receive() (Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.queue) == 0 {
		return Envelope{}, false
	}
	env := c.queue[0]
	c.queue = c.queue[1:]
	return env, true
}

// Len reports the number of envelopes currently queued.
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}
