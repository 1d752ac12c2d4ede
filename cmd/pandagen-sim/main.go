// Command pandagen-sim is the host program that loads a scenario
// config, assembles a kernel.SimKernel, and drives it — either by
// running a scenario to completion, dropping into an interactive
// shell, or moving a storage snapshot in or out of a running
// simulation. Grounded on the teacher's gwcli's root.go: one
// *cobra.Command tree, persistent flags resolved once in main, then
// handed off to whichever subcommand the user picked.
package main

import "os"

func main() {
	os.Exit(Execute(os.Args[1:]))
}
