package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/ipc"
	"github.com/pandagen/kernel/kernel"
	"github.com/pandagen/kernel/simconfig"
)

func newReplCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl <scenario.conf>",
		Short: "explore a scenario interactively, one syscall per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd, args[0])
		},
	}
	return cmd
}

// replState tracks what a session has minted so far, so a line can
// refer to "execution 0" or "channel 1" instead of a raw UUID — a
// shell's working set, the same role gwcli's mother.Mother keeps for
// its own session variables.
type replState struct {
	k          *kernel.SimKernel
	executions []core.ExecutionId
	channels   []core.ChannelId
}

func runRepl(cmd *cobra.Command, scenarioPath string) error {
	sc, err := simconfig.LoadFile(scenarioPath)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}
	dev, err := sc.BlockDevice()
	if err != nil {
		return fmt.Errorf("opening block device: %w", err)
	}
	cfg, err := sc.KernelConfig(ipc.FaultPlan{})
	if err != nil {
		return err
	}
	log, err := openLogger(cmd)
	if err != nil {
		return err
	}
	cfg.Log = log

	k, err := newKernel(cfg, dev)
	if err != nil {
		return err
	}
	st := &replState{k: k}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "pandagen-sim repl — type 'help' for commands, 'quit' to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		tokens, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(out, "parse error: %v\n", err)
			continue
		}
		if len(tokens) == 0 {
			continue
		}
		if tokens[0] == "quit" || tokens[0] == "exit" {
			break
		}
		if err := st.dispatch(out, tokens); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
	return nil
}

func (st *replState) dispatch(out io.Writer, tokens []string) error {
	switch tokens[0] {
	case "help":
		fmt.Fprintln(out, "spawn <kind>; channel <capacity>; send <exec-idx> <chan-idx> <payload>; "+
			"recv <exec-idx> <chan-idx>; advance <n>; now; quit")
		return nil
	case "spawn":
		if len(tokens) != 2 {
			return fmt.Errorf("usage: spawn <kind>")
		}
		task, err := st.k.SpawnTask(core.Identity{Kind: tokens[1], TrustDomain: "repl"}, core.Budget{})
		if err != nil {
			return err
		}
		exec, _ := st.k.ExecutionOf(task)
		st.executions = append(st.executions, exec)
		fmt.Fprintf(out, "execution %d = %s (task %s)\n", len(st.executions)-1, exec, task)
		return nil
	case "channel":
		if len(tokens) != 2 {
			return fmt.Errorf("usage: channel <capacity>")
		}
		cap, err := strconv.Atoi(tokens[1])
		if err != nil {
			return err
		}
		ch, kerr := st.k.CreateChannel(cap, st.executions, ipc.SchemaPolicy{})
		if kerr != nil {
			return kerr
		}
		st.channels = append(st.channels, ch)
		fmt.Fprintf(out, "channel %d = %s\n", len(st.channels)-1, ch)
		return nil
	case "send":
		if len(tokens) != 4 {
			return fmt.Errorf("usage: send <exec-idx> <chan-idx> <payload>")
		}
		exec, ch, err := st.resolve(tokens[1], tokens[2])
		if err != nil {
			return err
		}
		env := ipc.Envelope{Source: exec, Payload: []byte(tokens[3])}
		if kerr := st.k.Send(exec, ch, env); kerr != nil {
			return kerr
		}
		return nil
	case "recv":
		if len(tokens) != 3 {
			return fmt.Errorf("usage: recv <exec-idx> <chan-idx>")
		}
		exec, ch, err := st.resolve(tokens[1], tokens[2])
		if err != nil {
			return err
		}
		env, ok, kerr := st.k.Recv(exec, ch)
		if kerr != nil {
			return kerr
		}
		if !ok {
			fmt.Fprintln(out, "(empty)")
			return nil
		}
		fmt.Fprintf(out, "%q\n", env.Payload)
		return nil
	case "advance":
		if len(tokens) != 2 {
			return fmt.Errorf("usage: advance <n>")
		}
		n, err := strconv.ParseUint(tokens[1], 10, 64)
		if err != nil {
			return err
		}
		now := st.k.AdvanceTime(n)
		st.k.RunUntilIdle()
		fmt.Fprintf(out, "now %d\n", now)
		return nil
	case "now":
		fmt.Fprintf(out, "%d\n", st.k.Now())
		return nil
	default:
		return fmt.Errorf("unknown command %q (try 'help')", tokens[0])
	}
}

func (st *replState) resolve(execTok, chanTok string) (core.ExecutionId, core.ChannelId, error) {
	ei, err := strconv.Atoi(execTok)
	if err != nil || ei < 0 || ei >= len(st.executions) {
		return core.ExecutionId{}, core.ChannelId{}, fmt.Errorf("unknown execution index %q", execTok)
	}
	ci, err := strconv.Atoi(chanTok)
	if err != nil || ci < 0 || ci >= len(st.channels) {
		return core.ExecutionId{}, core.ChannelId{}, fmt.Errorf("unknown channel index %q", chanTok)
	}
	return st.executions[ei], st.channels[ci], nil
}
