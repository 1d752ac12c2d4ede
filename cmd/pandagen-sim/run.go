package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/faultscript"
	"github.com/pandagen/kernel/ipc"
	"github.com/pandagen/kernel/simconfig"
)

func newRunCommand() *cobra.Command {
	var faultPath string
	var ticks uint64

	cmd := &cobra.Command{
		Use:   "run <scenario.conf>",
		Short: "run a scenario to completion or for a fixed number of ticks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, args[0], faultPath, ticks)
		},
	}
	cmd.Flags().StringVar(&faultPath, "fault-script", "", "path to a YAML fault script (see package faultscript)")
	cmd.Flags().Uint64Var(&ticks, "ticks", 0, "advance exactly this many ticks instead of running until idle")
	return cmd
}

func runScenario(cmd *cobra.Command, scenarioPath, faultPath string, ticks uint64) error {
	sc, err := simconfig.LoadFile(scenarioPath)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}

	var plan ipc.FaultPlan
	if faultPath != "" {
		script, err := faultscript.Load(faultPath)
		if err != nil {
			return fmt.Errorf("loading fault script: %w", err)
		}
		// A scenario file names no channels of its own (those are
		// created by task bodies at run time), so a run invoked from
		// this command only supports fault rules that apply to every
		// channel (an empty Channel name in the script).
		plan, err = script.Resolve(nil)
		if err != nil {
			return fmt.Errorf("resolving fault script: %w", err)
		}
	}

	dev, err := sc.BlockDevice()
	if err != nil {
		return fmt.Errorf("opening block device: %w", err)
	}
	cfg, err := sc.KernelConfig(plan)
	if err != nil {
		return fmt.Errorf("building kernel config: %w", err)
	}
	log, err := openLogger(cmd)
	if err != nil {
		return err
	}
	cfg.Log = log

	k, kerr := newKernel(cfg, dev)
	if kerr != nil {
		return kerr
	}

	for _, spec := range sc.EDFSpecs() {
		taskId, serr := k.SpawnTask(core.Identity{Kind: spec.Name, TrustDomain: "scenario"}, core.Budget{})
		if serr != nil {
			return fmt.Errorf("spawning EDF task %q: %w", spec.Name, serr)
		}
		exec, ok := k.ExecutionOf(taskId)
		if !ok {
			return fmt.Errorf("internal error: no execution for freshly spawned task %q", spec.Name)
		}
		if serr := k.Sched().RegisterEDFTask(taskId, exec, spec.FirstDeadline, spec.Period, spec.Budget); serr != nil {
			return fmt.Errorf("registering EDF task %q: %w", spec.Name, serr)
		}
	}

	realtime, _ := cmd.Flags().GetBool("realtime")
	var limiter *rate.Limiter
	if realtime {
		period := time.Duration(sc.Global.Nanos_Per_Tick) * time.Nanosecond
		limiter = rate.NewLimiter(rate.Every(period), 1)
	}

	if ticks > 0 {
		for i := uint64(0); i < ticks; i++ {
			if limiter != nil {
				if err := limiter.Wait(context.Background()); err != nil {
					return err
				}
			}
			k.AdvanceTime(1)
			k.RunUntilIdle()
		}
	} else {
		steps := k.RunUntilIdle()
		fmt.Fprintf(cmd.OutOrStdout(), "ran %d dispatch steps to idle at tick %d\n", steps, k.Now())
	}

	return nil
}
