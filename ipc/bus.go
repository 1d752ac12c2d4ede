package ipc

import (
	"sync"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/klog"
)

// EventKind distinguishes ipc-level audit entries from the channel
// validation errors returned directly to callers.
type EventKind int

const (
	EventSent EventKind = iota
	EventDropped
	EventDelayed
	EventReordered
	EventCrashed
)

// Event is one ipc-level audit record (spec §5 ordering guarantees,
// §8 seed scenario 2 "audit shows two drops").
type Event struct {
	Sequence uint64
	Channel  core.ChannelId
	Kind     EventKind
}

// SendResult reports what happened to one Send call: Err is set only
// for a genuine validation failure (permission/schema/capacity); Action
// always reports the fault-injector's decision so the caller can react
// to ActionCrash (by terminating the owning execution) even though that
// is not itself a KernelError.
type SendResult struct {
	Action Action
	Err    *core.KernelError
}

// Bus owns every channel in a kernel instance plus the shared fault
// injector and delayed-delivery heap (spec §4.D). There is exactly one
// Bus per SimKernel.
type Bus struct {
	mu       sync.Mutex
	channels map[core.ChannelId]*Channel
	injector *Injector
	delay    *DelayHeap
	events   []Event
	seq      uint64
	log      *klog.Logger
}

// NewBus constructs an empty bus driven by the given fault plan.
func NewBus(plan FaultPlan) *Bus {
	return &Bus{
		channels: make(map[core.ChannelId]*Channel),
		injector: NewInjector(plan),
		delay:    NewDelayHeap(),
		log:      klog.NewDiscard(),
	}
}

// SetLogger routes the bus's fault-action events to l.
func (b *Bus) SetLogger(l *klog.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log = l
}

// Register adds an already-constructed channel to the bus.
func (b *Bus) Register(ch *Channel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[ch.ID()] = ch
}

// Channel looks up a registered channel.
func (b *Bus) Channel(id core.ChannelId) (*Channel, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[id]
	return ch, ok
}

func (b *Bus) record(channel core.ChannelId, kind EventKind) {
	b.seq++
	b.events = append(b.events, Event{Sequence: b.seq, Channel: channel, Kind: kind})
}

// Events returns a snapshot of the ipc audit log.
func (b *Bus) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Send applies the bus's fault injector to one send attempt and, for
// ActionDeliver/ActionReorder, performs the enqueue. Schema/permission/
// capacity failures are returned as Err regardless of fault state —
// faults only ever affect messages that would otherwise have been
// accepted.
func (b *Bus) Send(now core.Tick, channelId core.ChannelId, env Envelope, senderExec core.ExecutionId) SendResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.channels[channelId]
	if !ok {
		return SendResult{Action: ActionDeliver, Err: core.TargetUnknown()}
	}
	if err := ch.CheckSend(env, senderExec); err != nil {
		return SendResult{Action: ActionDeliver, Err: err}
	}

	action, delayTicks := b.injector.OnSend(channelId)
	switch action {
	case ActionCrash:
		b.record(channelId, EventCrashed)
		b.log.Debug("ipc", "send-side crash injected on channel %s", channelId)
		return SendResult{Action: ActionCrash}
	case ActionDrop:
		b.record(channelId, EventDropped)
		b.log.Debug("ipc", "message dropped on channel %s", channelId)
		return SendResult{Action: ActionDrop}
	case ActionDelay:
		b.delay.Schedule(now+core.Tick(delayTicks), channelId, env)
		b.record(channelId, EventDelayed)
		return SendResult{Action: ActionDelay}
	case ActionReorder:
		if err := ch.EnqueueReordered(env, senderExec); err != nil {
			return SendResult{Action: ActionReorder, Err: err}
		}
		b.record(channelId, EventReordered)
		return SendResult{Action: ActionReorder}
	default:
		if err := ch.Enqueue(env, senderExec); err != nil {
			return SendResult{Action: ActionDeliver, Err: err}
		}
		b.record(channelId, EventSent)
		return SendResult{Action: ActionDeliver}
	}
}

// Receive applies the fault injector's receive-side decision (crash
// after N processed) and then pops the head envelope. The bool return
// is false only when the channel was genuinely empty, distinct from a
// zero-value Envelope that was actually delivered.
func (b *Bus) Receive(channelId core.ChannelId) (Envelope, bool, Action, *core.KernelError) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.channels[channelId]
	if !ok {
		return Envelope{}, false, ActionDeliver, core.TargetUnknown()
	}
	if action := b.injector.OnReceive(channelId); action == ActionCrash {
		b.record(channelId, EventCrashed)
		return Envelope{}, false, ActionCrash, nil
	}
	env, ok := ch.Receive()
	if !ok {
		return Envelope{}, false, ActionDeliver, nil
	}
	return env, true, ActionDeliver, nil
}

// DrainDelayed delivers every envelope whose deliver-at tick has
// arrived, directly into its destination channel's queue (bypassing
// fault injection — a message already past the injector is delivered
// as scheduled).
func (b *Bus) DrainDelayed(now core.Tick) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay.Drain(now, func(channel core.ChannelId, env Envelope) {
		if ch, ok := b.channels[channel]; ok {
			ch.deliverDelayed(env)
			b.record(channel, EventSent)
		}
	})
}

// PendingDelayed reports how many delayed envelopes are still in flight.
func (b *Bus) PendingDelayed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.delay.Len()
}
