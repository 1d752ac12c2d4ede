// Package faultscript loads an ipc.FaultPlan from a YAML document via
// gopkg.in/yaml.v3, an indirect dependency of the teacher's own module
// graph. A FaultPlan is naturally a short list of timed actions
// (drop/delay/reorder/crash), which fits YAML's sequence/mapping shape
// better than gcfg's key/value `.conf` sections — the same reasoning
// that gives package simconfig its own, separate format for scalar
// kernel parameters.
//
// Channels do not exist until a scenario actually creates them, so a
// fault script names channels by a caller-chosen string instead of a
// core.ChannelId; Resolve turns those names into a live ipc.FaultPlan
// once the host knows the real ids.
package faultscript

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/ipc"
)

// Script is the parsed, unresolved form of a fault plan.
type Script struct {
	Drop    *CountRule `yaml:"drop"`
	Delay   *DelayRule `yaml:"delay"`
	Reorder *CountRule `yaml:"reorder"`

	CrashOnSend    []string       `yaml:"crash_on_send"`
	CrashOnReceive []string       `yaml:"crash_on_receive"`
	CrashAfterN    map[string]int `yaml:"crash_after_n"`
}

// CountRule scopes an action to the next Count messages on Channel (all
// channels if Channel is empty).
type CountRule struct {
	Count   int    `yaml:"count"`
	Channel string `yaml:"channel"`
}

// DelayRule is a CountRule plus how long to delay each matched message.
type DelayRule struct {
	Count   int    `yaml:"count"`
	Ticks   uint64 `yaml:"ticks"`
	Channel string `yaml:"channel"`
}

// Load parses a fault script from path.
func Load(path string) (*Script, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadBytes(b)
}

// LoadBytes parses a fault script from raw YAML bytes.
func LoadBytes(b []byte) (*Script, error) {
	var sc Script
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return nil, fmt.Errorf("parsing fault script: %w", err)
	}
	return &sc, nil
}

// Resolve turns named channel references into a concrete ipc.FaultPlan,
// using names to look up the core.ChannelId the host minted for each
// one (typically via the same names register_service publishes under).
// An unresolvable name in crash_on_send/crash_on_receive/crash_after_n
// is an error; a rule's own Channel may be left empty to mean "every
// channel" and needs no lookup.
func (sc *Script) Resolve(names map[string]core.ChannelId) (ipc.FaultPlan, error) {
	lookup := func(name string) (core.ChannelId, error) {
		if name == "" {
			return core.ChannelId{}, nil
		}
		id, ok := names[name]
		if !ok {
			return core.ChannelId{}, fmt.Errorf("faultscript: unknown channel name %q", name)
		}
		return id, nil
	}

	var plan ipc.FaultPlan

	if sc.Drop != nil {
		ch, err := lookup(sc.Drop.Channel)
		if err != nil {
			return ipc.FaultPlan{}, err
		}
		plan.DropNext = sc.Drop.Count
		plan.DropChannel = ch
	}
	if sc.Delay != nil {
		ch, err := lookup(sc.Delay.Channel)
		if err != nil {
			return ipc.FaultPlan{}, err
		}
		plan.DelayNext = sc.Delay.Count
		plan.DelayTicks = sc.Delay.Ticks
		plan.DelayChannel = ch
	}
	if sc.Reorder != nil {
		ch, err := lookup(sc.Reorder.Channel)
		if err != nil {
			return ipc.FaultPlan{}, err
		}
		plan.ReorderNext = sc.Reorder.Count
		plan.ReorderChan = ch
	}

	if len(sc.CrashOnSend) > 0 {
		plan.CrashOnSend = make(map[core.ChannelId]bool, len(sc.CrashOnSend))
		for _, name := range sc.CrashOnSend {
			ch, err := lookup(name)
			if err != nil {
				return ipc.FaultPlan{}, err
			}
			plan.CrashOnSend[ch] = true
		}
	}
	if len(sc.CrashOnReceive) > 0 {
		plan.CrashOnRecv = make(map[core.ChannelId]bool, len(sc.CrashOnReceive))
		for _, name := range sc.CrashOnReceive {
			ch, err := lookup(name)
			if err != nil {
				return ipc.FaultPlan{}, err
			}
			plan.CrashOnRecv[ch] = true
		}
	}
	if len(sc.CrashAfterN) > 0 {
		plan.CrashAfterN = make(map[core.ChannelId]int, len(sc.CrashAfterN))
		for name, n := range sc.CrashAfterN {
			ch, err := lookup(name)
			if err != nil {
				return ipc.FaultPlan{}, err
			}
			plan.CrashAfterN[ch] = n
		}
	}

	return plan, nil
}
