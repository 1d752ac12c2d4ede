// Package ipc implements the bounded message-queue channels, schema
// version policy, and deterministic fault injector of spec §4.D.
package ipc

import "github.com/pandagen/kernel/core"

// SchemaVersion is a (major, minor) pair governing envelope
// compatibility (spec §3, §4.D).
type SchemaVersion struct {
	Major int
	Minor int
}

// Envelope is an immutable message once enqueued (spec §3).
type Envelope struct {
	Action        string
	SchemaVersion SchemaVersion
	CorrelationId core.MessageId
	Payload       []byte
	Source        core.ExecutionId
	Destination   core.ExecutionId
}
