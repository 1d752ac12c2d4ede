package syscall

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/pandagen/kernel/core"
)

// RequestEnvelope is the wire form of one Syscall (spec §4.H "Wire
// form (optional)": action="kernel.syscall.request", typed payload).
// Grounded on the teacher's websocketRouter (client/websocketRouter):
// JSON frames over a single upgraded connection, one goroutine reading,
// replies matched by a caller-assigned id rather than strict
// request/response ordering.
type RequestEnvelope struct {
	Action  string  `json:"action"`
	ReqId   uint64  `json:"req_id"`
	Caller  string  `json:"caller"`
	Syscall Syscall `json:"syscall"`
}

// ResponseEnvelope mirrors RequestEnvelope's ReqId so a client can
// demultiplex replies on a connection carrying several in-flight calls.
type ResponseEnvelope struct {
	Action   string    `json:"action"`
	ReqId    uint64    `json:"req_id"`
	Response *Response `json:"response,omitempty"`
	Error    string    `json:"error,omitempty"`
}

const (
	requestAction  = "kernel.syscall.request"
	responseAction = "kernel.syscall.response"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // any origin is accepted; Serve does not restrict peers
}

// Serve upgrades one HTTP connection to a websocket and services
// syscall requests against gate until the connection closes. The
// in-process Gate.Execute path is logically identical (spec §4.H: "The
// in-process path is logically identical") — this is purely a transport
// for a client that cannot share a process with the kernel.
func Serve(w http.ResponseWriter, r *http.Request, gate *Gate) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("syscall wire: upgrade: %w", err)
	}
	defer conn.Close()

	for {
		var req RequestEnvelope
		if err := conn.ReadJSON(&req); err != nil {
			return nil // connection closed or malformed frame; caller's problem to retry
		}
		if req.Action != requestAction {
			conn.WriteJSON(ResponseEnvelope{Action: responseAction, ReqId: req.ReqId, Error: "unrecognized action"})
			continue
		}
		caller, perr := core.ParseExecutionId(req.Caller)
		if perr != nil {
			conn.WriteJSON(ResponseEnvelope{Action: responseAction, ReqId: req.ReqId, Error: perr.Error()})
			continue
		}
		resp, kerr := gate.Execute(caller, req.Syscall)
		out := ResponseEnvelope{Action: responseAction, ReqId: req.ReqId, Response: &resp}
		if kerr != nil {
			out.Error = kerr.Error()
		}
		if err := conn.WriteJSON(out); err != nil {
			return fmt.Errorf("syscall wire: write response: %w", err)
		}
	}
}

// DialAndCall opens a websocket to addr and performs exactly one
// syscall round-trip (spec §4.H wire form).
func DialAndCall(addr string, caller core.ExecutionId, call Syscall) (Response, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return Response{}, fmt.Errorf("syscall wire: dial: %w", err)
	}
	defer conn.Close()

	req := RequestEnvelope{Action: requestAction, ReqId: 1, Caller: caller.String(), Syscall: call}
	if err := conn.WriteJSON(req); err != nil {
		return Response{}, fmt.Errorf("syscall wire: write request: %w", err)
	}
	var resp ResponseEnvelope
	if err := conn.ReadJSON(&resp); err != nil {
		return Response{}, fmt.Errorf("syscall wire: read response: %w", err)
	}
	if resp.Error != "" {
		return Response{}, fmt.Errorf("syscall wire: %s", resp.Error)
	}
	if resp.Response == nil {
		return Response{}, fmt.Errorf("syscall wire: empty response")
	}
	return *resp.Response, nil
}
