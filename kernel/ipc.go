package kernel

import (
	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/ipc"
)

// CreateChannel registers a new bounded channel on the bus and grants
// a send capability naming it to every entry in allowedSenders (spec
// §4.D "Channel... access gated by channel capability"). No receive
// capability is minted here; a receiver needs GrantChannelCap or
// delegation before it can Recv. The two kinds of cap are independent:
// granting send authority never implies receive authority or vice
// versa.
func (k *SimKernel) CreateChannel(capacity int, allowedSenders []core.ExecutionId, policy ipc.SchemaPolicy) (core.ChannelId, *core.KernelError) {
	k.mu.Lock()
	defer k.mu.Unlock()

	id := core.NewChannelId()
	ch := ipc.NewChannel(id, capacity, allowedSenders, policy, nil)
	k.bus.Register(ch)

	now := k.timer.PollTicks()
	for _, sender := range allowedSenders {
		k.grantChannelCapLocked(sender, id, core.CapKindChannelSend, now)
	}
	return id, nil
}

// GrantChannelCap mints a send or receive capability on channel for
// owner, for callers that need to extend access after creation (e.g.
// register_service publishing a channel to a new holder).
func (k *SimKernel) GrantChannelCap(owner core.ExecutionId, channel core.ChannelId, kind core.CapKind) core.CapId {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.grantChannelCapLocked(owner, channel, kind, k.timer.PollTicks())
}

func (k *SimKernel) grantChannelCapLocked(owner core.ExecutionId, channel core.ChannelId, kind core.CapKind, now core.Tick) core.CapId {
	capId := k.caps.GrantForTarget(now, owner, kind, channel.String())
	byKind, ok := k.channelCaps[channel]
	if !ok {
		byKind = make(map[core.CapKind][]core.CapId)
		k.channelCaps[channel] = byKind
	}
	byKind[kind] = append(byKind[kind], capId)
	return capId
}

// Send validates that caller holds a send capability naming this exact
// channel before handing the envelope to the bus, where the channel's
// own membership/schema/capacity checks and the fault injector still
// apply (spec §4.D send, numbered checks 1-4; capability possession is
// check 1 and is enforced here, ahead of the bus).
func (k *SimKernel) Send(caller core.ExecutionId, channel core.ChannelId, env ipc.Envelope) *core.KernelError {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.holdsChannelCapLocked(caller, channel, core.CapKindChannelSend); err != nil {
		return err
	}
	now := k.timer.PollTicks()
	result := k.bus.Send(now, channel, env, caller)
	if result.Action == ipc.ActionCrash {
		k.terminateLocked(caller)
		return nil
	}
	return result.Err
}

// Recv validates a receive capability naming channel, then pops the
// head envelope if one is ready. A false second return with a nil error
// means the channel is simply empty (spec §4.D "receive... returns the
// head envelope or None").
func (k *SimKernel) Recv(caller core.ExecutionId, channel core.ChannelId) (ipc.Envelope, bool, *core.KernelError) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if err := k.holdsChannelCapLocked(caller, channel, core.CapKindChannelReceive); err != nil {
		return ipc.Envelope{}, false, err
	}
	env, ok, action, err := k.bus.Receive(channel)
	if err != nil {
		return ipc.Envelope{}, false, err
	}
	if action == ipc.ActionCrash {
		k.terminateLocked(caller)
		return ipc.Envelope{}, false, nil
	}
	return env, ok, nil
}

// holdsChannelCapLocked validates holder's authority of kind naming
// channel. Delegation moves ownership inside the same capId
// (captable.Delegate mutates the entry in place), so scanning every
// capId ever minted for this (channel, kind) pair and validating it
// against holder correctly reflects delegation without the kernel
// needing its own per-holder index.
//
// Returns nil if any candidate validates. Otherwise returns the most
// specific error found: NoCapability only when the channel/kind pair
// has no candidate caps at all, or the discriminated
// InvalidCapability(reason) reported by ValidateTarget for a candidate
// that exists but doesn't clear for holder (delegated away to someone
// else, expired, revoked, or orphaned by the owner's termination).
func (k *SimKernel) holdsChannelCapLocked(holder core.ExecutionId, channel core.ChannelId, kind core.CapKind) *core.KernelError {
	now := k.timer.PollTicks()
	best := core.NoCapability()
	for _, candidate := range k.channelCaps[channel][kind] {
		err := k.caps.ValidateTarget(now, candidate, holder, kind, channel.String())
		if err == nil {
			return nil
		}
		if err.Kind == core.ErrInvalidCapability {
			best = err
		}
	}
	return best
}
