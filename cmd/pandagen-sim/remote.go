package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/ipc"
	"github.com/pandagen/kernel/simconfig"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// tickReport is one message pushed to a connected remote viewer after
// every advance-and-run cycle.
type tickReport struct {
	Tick  core.Tick `json:"tick"`
	Steps int       `json:"steps"`
}

func newRemoteCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "remote <scenario.conf>",
		Short: "serve a scenario's tick progress over a websocket for a remote viewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRemote(cmd, args[0], addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8088", "address to listen on")
	return cmd
}

// runRemote upgrades every connection to /ws and, for as long as it
// stays open, advances the kernel one tick per received message and
// reports back how many dispatch steps that tick took — the same
// connection-per-client, message-per-request shape as the teacher's
// client/websocketRouter.SubProtoServer, simplified to a single
// subprotocol since a simulation viewer has no need to multiplex.
func runRemote(cmd *cobra.Command, scenarioPath, addr string) error {
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

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			now := k.AdvanceTime(1)
			steps := k.RunUntilIdle()
			b, err := json.Marshal(tickReport{Tick: now, Steps: steps})
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	})

	fmt.Fprintf(cmd.OutOrStdout(), "serving %s on ws://%s/ws\n", scenarioPath, addr)
	return http.ListenAndServe(addr, mux)
}
