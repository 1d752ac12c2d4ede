package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pandagen/kernel/simconfig"
	"github.com/pandagen/kernel/storage"
)

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "export or import a scenario's storage state",
	}
	cmd.AddCommand(newSnapshotExportCommand())
	cmd.AddCommand(newSnapshotImportCommand())
	return cmd
}

func newSnapshotExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <scenario.conf> <out-path>",
		Short: "gzip-snapshot a scenario's current storage state to out-path",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := simconfig.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("loading scenario: %w", err)
			}
			dev, err := sc.BlockDevice()
			if err != nil {
				return fmt.Errorf("opening block device: %w", err)
			}
			store, kerr := storage.Open(dev)
			if kerr != nil {
				return kerr
			}
			if err := store.Export(args[1]); err != nil {
				return fmt.Errorf("exporting snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote snapshot to %s\n", args[1])
			return nil
		},
	}
}

func newSnapshotImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <scenario.conf> <snapshot-path>",
		Short: "restore a snapshot produced by 'snapshot export' into a scenario's storage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := simconfig.LoadFile(args[0])
			if err != nil {
				return fmt.Errorf("loading scenario: %w", err)
			}
			dev, err := sc.BlockDevice()
			if err != nil {
				return fmt.Errorf("opening block device: %w", err)
			}
			if _, err := storage.Import(args[1], dev, func(p string) (io.ReadCloser, error) {
				return os.Open(p)
			}); err != nil {
				return fmt.Errorf("importing snapshot: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "restored snapshot from %s\n", args[1])
			return nil
		},
	}
}
