package main

import (
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/pandagen/kernel/klog"
)

const (
	use   = "pandagen-sim"
	short = "PandaGen deterministic-simulation kernel driver"
	long  = "pandagen-sim loads a scenario file describing a PandaGen SimKernel\n" +
		"and drives it: run it to completion, explore it interactively,\n" +
		"or move a storage snapshot in or out of a live simulation."
)

var stateLock *flock.Flock

// GenerateFlags populates the persistent flags shared by every
// subcommand, mirroring the teacher's GenerateFlags(root) shape.
func GenerateFlags(root *cobra.Command) {
	root.PersistentFlags().String("statefile", "", "path to a lock file guarding this scenario against concurrent runs.\n"+
		"Empty disables locking.")
	root.PersistentFlags().Bool("realtime", false, "pace dispatch to wall-clock time instead of running as fast as possible.")
	root.PersistentFlags().String("log", "", "developer log file path. Empty discards logs.")
	root.PersistentFlags().String("loglevel", "INFO", "developer log level: OFF, DEBUG, INFO, WARN, ERROR, CRITICAL.")
}

// ppre acquires the statefile lock, if one was requested, before any
// subcommand touches the scenario's backing storage.
func ppre(cmd *cobra.Command, args []string) error {
	path, err := cmd.Flags().GetString("statefile")
	if err != nil || path == "" {
		return err
	}
	stateLock = flock.New(path)
	ok, err := stateLock.TryLock()
	if err != nil {
		return fmt.Errorf("locking statefile %q: %w", path, err)
	}
	if !ok {
		return fmt.Errorf("statefile %q is held by another pandagen-sim process", path)
	}
	return nil
}

// ppost releases the statefile lock acquired by ppre, if any.
func ppost(cmd *cobra.Command, args []string) error {
	if stateLock == nil {
		return nil
	}
	return stateLock.Unlock()
}

func openLogger(cmd *cobra.Command) (*klog.Logger, error) {
	path, _ := cmd.Flags().GetString("log")
	levelName, _ := cmd.Flags().GetString("loglevel")
	if path == "" {
		return klog.NewDiscard(), nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %q: %w", path, err)
	}
	l := klog.New(f)
	switch levelName {
	case "OFF":
		l.SetLevel(klog.OFF)
	case "DEBUG":
		l.SetLevel(klog.DEBUG)
	case "WARN":
		l.SetLevel(klog.WARN)
	case "ERROR":
		l.SetLevel(klog.ERROR)
	case "CRITICAL":
		l.SetLevel(klog.CRITICAL)
	default:
		l.SetLevel(klog.INFO)
	}
	return l, nil
}

// Execute assembles the command tree and runs it, returning a process
// exit code the same way the teacher's tree.Execute does.
func Execute(args []string) int {
	root := &cobra.Command{
		Use:               use,
		Short:             short,
		Long:              long,
		SilenceUsage:      true,
		PersistentPreRunE: ppre,
		PersistentPostRunE: ppost,
	}
	GenerateFlags(root)

	root.AddCommand(newRunCommand())
	root.AddCommand(newReplCommand())
	root.AddCommand(newSnapshotCommand())
	root.AddCommand(newRemoteCommand())

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
