// Package core holds the identifier, error, and value types shared by
// every kernel component. Nothing in here performs an operation; it only
// defines the vocabulary the other packages operate on.
package core

import (
	"encoding/json"

	"github.com/google/uuid"
)

// TaskId names a task record across its lifetime.
type TaskId uuid.UUID

// ExecutionId names the identity authority and budget accrue to. A task
// that restarts gets a fresh ExecutionId unless explicitly re-granted.
type ExecutionId uuid.UUID

// ServiceId names a registered service endpoint.
type ServiceId uuid.UUID

// ChannelId names a message channel.
type ChannelId uuid.UUID

// CapId names a capability table entry.
type CapId uuid.UUID

// MessageId names a single enqueued envelope.
type MessageId uuid.UUID

// ObjectId names a storage object.
type ObjectId uuid.UUID

// AddressSpaceId names an address space.
type AddressSpaceId uuid.UUID

// MemoryRegionId names a region within an address space.
type MemoryRegionId uuid.UUID

// ExecutionId of zero value never names a valid execution; it is used as
// a sentinel for "no grantor" and similar optional-owner fields.
var NilExecutionId ExecutionId

func newTaskId() TaskId               { return TaskId(uuid.New()) }
func newExecutionId() ExecutionId     { return ExecutionId(uuid.New()) }
func newServiceId() ServiceId         { return ServiceId(uuid.New()) }
func newChannelId() ChannelId         { return ChannelId(uuid.New()) }
func newCapId() CapId                 { return CapId(uuid.New()) }
func newMessageId() MessageId         { return MessageId(uuid.New()) }
func newObjectId() ObjectId           { return ObjectId(uuid.New()) }
func newAddressSpaceId() AddressSpaceId { return AddressSpaceId(uuid.New()) }
func newMemoryRegionId() MemoryRegionId { return MemoryRegionId(uuid.New()) }

// NewTaskId mints a fresh, globally unique task identifier.
func NewTaskId() TaskId { return newTaskId() }

// NewExecutionId mints a fresh execution identity.
func NewExecutionId() ExecutionId { return newExecutionId() }

// NewServiceId mints a fresh service identifier.
func NewServiceId() ServiceId { return newServiceId() }

// NewChannelId mints a fresh channel identifier.
func NewChannelId() ChannelId { return newChannelId() }

// NewCapId mints a fresh capability identifier.
func NewCapId() CapId { return newCapId() }

// NewMessageId mints a fresh message identifier.
func NewMessageId() MessageId { return newMessageId() }

// NewObjectId mints a fresh storage object identifier.
func NewObjectId() ObjectId { return newObjectId() }

// NewAddressSpaceId mints a fresh address space identifier.
func NewAddressSpaceId() AddressSpaceId { return newAddressSpaceId() }

// NewMemoryRegionId mints a fresh memory region identifier.
func NewMemoryRegionId() MemoryRegionId { return newMemoryRegionId() }

func (t TaskId) String() string         { return uuid.UUID(t).String() }
func (e ExecutionId) String() string    { return uuid.UUID(e).String() }
func (s ServiceId) String() string      { return uuid.UUID(s).String() }
func (c ChannelId) String() string      { return uuid.UUID(c).String() }
func (c CapId) String() string          { return uuid.UUID(c).String() }
func (m MessageId) String() string      { return uuid.UUID(m).String() }
func (o ObjectId) String() string       { return uuid.UUID(o).String() }
func (a AddressSpaceId) String() string { return uuid.UUID(a).String() }
func (m MemoryRegionId) String() string { return uuid.UUID(m).String() }

func (e ExecutionId) IsNil() bool { return e == NilExecutionId }

// ParseExecutionId parses a canonical UUID string, for transports (the
// syscall websocket codec) that carry identifiers as text.
func ParseExecutionId(s string) (ExecutionId, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ExecutionId{}, err
	}
	return ExecutionId(u), nil
}

// MarshalJSON renders an id the same way uuid.UUID does (a canonical
// hyphenated string) rather than the raw byte array a plain defined-
// array-type would otherwise produce.
func (e ExecutionId) MarshalJSON() ([]byte, error) { return json.Marshal(e.String()) }

func (e *ExecutionId) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	id, err := ParseExecutionId(s)
	if err != nil {
		return err
	}
	*e = id
	return nil
}

func (t TaskId) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *TaskId) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*t = TaskId(u)
	return nil
}

func (c ChannelId) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *ChannelId) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*c = ChannelId(u)
	return nil
}

func (c CapId) MarshalJSON() ([]byte, error) { return json.Marshal(c.String()) }

func (c *CapId) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*c = CapId(u)
	return nil
}

func (s ServiceId) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *ServiceId) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	u, err := uuid.Parse(str)
	if err != nil {
		return err
	}
	*s = ServiceId(u)
	return nil
}

func (a AddressSpaceId) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

func (a *AddressSpaceId) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*a = AddressSpaceId(u)
	return nil
}

func (m MemoryRegionId) MarshalJSON() ([]byte, error) { return json.Marshal(m.String()) }

func (m *MemoryRegionId) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*m = MemoryRegionId(u)
	return nil
}
