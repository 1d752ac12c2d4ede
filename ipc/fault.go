package ipc

import "github.com/pandagen/kernel/core"

// Action is the decision a FaultInjector returns for one send or
// receive attempt (spec §4.D "Fault injection").
type Action int

const (
	ActionDeliver Action = iota
	ActionDrop
	ActionDelay
	ActionReorder
	ActionCrash
)

// FaultPlan is the deterministic script consumed by a FaultInjector
// (spec §4.D, §8 "FaultPlan"). Re-running the same plan against the
// same operation sequence always yields the same decisions.
type FaultPlan struct {
	DropNext     int
	DropChannel  core.ChannelId
	DelayNext    int
	DelayTicks   uint64
	DelayChannel core.ChannelId
	ReorderNext  int
	ReorderChan  core.ChannelId
	CrashOnSend  map[core.ChannelId]bool
	CrashOnRecv  map[core.ChannelId]bool
	CrashAfterN  map[core.ChannelId]int
}

// Injector is the live, mutable state of a FaultPlan as it is consumed.
// Two injectors built from the same plan and driven by the same
// sequence of OnSend/OnReceive calls make identical decisions (spec §5
// determinism, §8 testable property 6).
type Injector struct {
	dropRemaining    int
	dropChannel      core.ChannelId
	delayRemaining   int
	delayTicks       uint64
	delayChannel     core.ChannelId
	reorderRemaining int
	reorderChannel   core.ChannelId
	crashOnSend      map[core.ChannelId]bool
	crashOnRecv      map[core.ChannelId]bool
	crashAfterN      map[core.ChannelId]int
	processed        map[core.ChannelId]int
}

// NewInjector builds a fresh Injector from plan. plan itself is never
// mutated, so the same plan may seed multiple independent Injectors for
// determinism comparisons.
func NewInjector(plan FaultPlan) *Injector {
	inj := &Injector{
		dropRemaining:    plan.DropNext,
		dropChannel:      plan.DropChannel,
		delayRemaining:   plan.DelayNext,
		delayTicks:       plan.DelayTicks,
		delayChannel:     plan.DelayChannel,
		reorderRemaining: plan.ReorderNext,
		reorderChannel:   plan.ReorderChan,
		crashOnSend:      cloneBoolMap(plan.CrashOnSend),
		crashOnRecv:      cloneBoolMap(plan.CrashOnRecv),
		crashAfterN:      cloneIntMap(plan.CrashAfterN),
		processed:        make(map[core.ChannelId]int),
	}
	return inj
}

func cloneBoolMap(m map[core.ChannelId]bool) map[core.ChannelId]bool {
	out := make(map[core.ChannelId]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneIntMap(m map[core.ChannelId]int) map[core.ChannelId]int {
	out := make(map[core.ChannelId]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func matches(scope, channel core.ChannelId) bool {
	return scope == (core.ChannelId{}) || scope == channel
}

// OnSend decides what happens to a send attempt on channel. delayTicks
// is only meaningful when the returned Action is ActionDelay.
func (inj *Injector) OnSend(channel core.ChannelId) (action Action, delayTicks uint64) {
	if inj.crashOnSend[channel] {
		return ActionCrash, 0
	}
	if inj.dropRemaining > 0 && matches(inj.dropChannel, channel) {
		inj.dropRemaining--
		return ActionDrop, 0
	}
	if inj.delayRemaining > 0 && matches(inj.delayChannel, channel) {
		inj.delayRemaining--
		return ActionDelay, inj.delayTicks
	}
	if inj.reorderRemaining > 0 && matches(inj.reorderChannel, channel) {
		inj.reorderRemaining--
		return ActionReorder, 0
	}
	return ActionDeliver, 0
}

// OnReceive decides whether a receive attempt on channel should crash,
// after accounting for CrashAfterN.
func (inj *Injector) OnReceive(channel core.ChannelId) Action {
	if inj.crashOnRecv[channel] {
		return ActionCrash
	}
	if n, ok := inj.crashAfterN[channel]; ok {
		inj.processed[channel]++
		if inj.processed[channel] > n {
			return ActionCrash
		}
	}
	return ActionDeliver
}
