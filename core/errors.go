package core

import (
	"fmt"

	"github.com/inhies/go-bytesize"
)

// ErrorKind enumerates the kernel's error taxonomy (spec §4.A). Every
// public kernel operation returns either nil or a *KernelError carrying
// one of these kinds.
type ErrorKind int

const (
	_ ErrorKind = iota
	ErrNoCapability
	ErrInvalidCapability
	ErrOwnerDead
	ErrPermissionDenied
	ErrBudgetExhausted
	ErrSchemaMismatch
	ErrChannelFull
	ErrTargetUnknown
	ErrCancelRequested
	ErrPolicyDenied
	ErrPolicyRequire
	ErrStorageError
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNoCapability:
		return "NoCapability"
	case ErrInvalidCapability:
		return "InvalidCapability"
	case ErrOwnerDead:
		return "OwnerDead"
	case ErrPermissionDenied:
		return "PermissionDenied"
	case ErrBudgetExhausted:
		return "BudgetExhausted"
	case ErrSchemaMismatch:
		return "SchemaMismatch"
	case ErrChannelFull:
		return "ChannelFull"
	case ErrTargetUnknown:
		return "TargetUnknown"
	case ErrCancelRequested:
		return "CancelRequested"
	case ErrPolicyDenied:
		return "PolicyDenied"
	case ErrPolicyRequire:
		return "PolicyRequire"
	case ErrStorageError:
		return "StorageError"
	default:
		return "Unknown"
	}
}

// InvalidCapabilityReason discriminates why a capability failed
// validation, per spec §4.C.
type InvalidCapabilityReason int

const (
	_ InvalidCapabilityReason = iota
	ReasonOwnerDead
	ReasonNeverGranted
	ReasonTransferredAway
	ReasonTypeMismatch
	ReasonRevoked
	ReasonLeaseExpired
)

func (r InvalidCapabilityReason) String() string {
	switch r {
	case ReasonOwnerDead:
		return "OwnerDead"
	case ReasonNeverGranted:
		return "NeverGranted"
	case ReasonTransferredAway:
		return "TransferredAway"
	case ReasonTypeMismatch:
		return "TypeMismatch"
	case ReasonRevoked:
		return "Revoked"
	case ReasonLeaseExpired:
		return "LeaseExpired"
	default:
		return "Unknown"
	}
}

// KernelError is the single structured error type returned by every
// exported kernel operation (spec §4.A, §7).
type KernelError struct {
	Kind ErrorKind

	// InvalidCapability detail.
	CapReason InvalidCapabilityReason

	// PermissionDenied detail.
	What string

	// BudgetExhausted detail.
	BudgetKind string
	Requested  uint64
	Available  uint64

	// SchemaMismatch detail.
	Supported string
	Got       string

	// PolicyDenied / PolicyRequire / StorageError detail.
	Reason string
}

func (e *KernelError) Error() string {
	switch e.Kind {
	case ErrInvalidCapability:
		return fmt.Sprintf("invalid capability: %s", e.CapReason)
	case ErrPermissionDenied:
		return fmt.Sprintf("permission denied: %s", e.What)
	case ErrBudgetExhausted:
		if e.BudgetKind == BudgetMemoryUnits {
			return fmt.Sprintf("budget exhausted: %s requested=%s available=%s", e.BudgetKind,
				bytesize.New(float64(e.Requested*PageSize)), bytesize.New(float64(e.Available*PageSize)))
		}
		return fmt.Sprintf("budget exhausted: %s requested=%d available=%d", e.BudgetKind, e.Requested, e.Available)
	case ErrSchemaMismatch:
		return fmt.Sprintf("schema mismatch: supported=%s got=%s", e.Supported, e.Got)
	case ErrPolicyDenied:
		return fmt.Sprintf("policy denied: %s", e.Reason)
	case ErrPolicyRequire:
		return fmt.Sprintf("policy requires: %s", e.Reason)
	case ErrStorageError:
		return fmt.Sprintf("storage error: %s", e.Reason)
	default:
		return e.Kind.String()
	}
}

// Is allows errors.Is(err, core.KindError(core.ErrChannelFull)) style
// comparisons without exposing the full struct shape to callers that
// only care about the kind.
func (e *KernelError) Is(target error) bool {
	t, ok := target.(*KernelError)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	if t.Kind == ErrInvalidCapability && t.CapReason != 0 {
		return t.CapReason == e.CapReason
	}
	return true
}

// KindError builds a bare *KernelError carrying only a Kind, suitable as
// an errors.Is target.
func KindError(k ErrorKind) *KernelError { return &KernelError{Kind: k} }

func NoCapability() *KernelError { return &KernelError{Kind: ErrNoCapability} }

func InvalidCapability(reason InvalidCapabilityReason) *KernelError {
	return &KernelError{Kind: ErrInvalidCapability, CapReason: reason}
}

func OwnerDead() *KernelError { return &KernelError{Kind: ErrOwnerDead} }

func PermissionDenied(what string) *KernelError {
	return &KernelError{Kind: ErrPermissionDenied, What: what}
}

func BudgetExhausted(kind string, requested, available uint64) *KernelError {
	return &KernelError{Kind: ErrBudgetExhausted, BudgetKind: kind, Requested: requested, Available: available}
}

func SchemaMismatch(supported, got string) *KernelError {
	return &KernelError{Kind: ErrSchemaMismatch, Supported: supported, Got: got}
}

func ChannelFull() *KernelError { return &KernelError{Kind: ErrChannelFull} }

func TargetUnknown() *KernelError { return &KernelError{Kind: ErrTargetUnknown} }

func CancelRequested() *KernelError { return &KernelError{Kind: ErrCancelRequested} }

func PolicyDenied(reason string) *KernelError {
	return &KernelError{Kind: ErrPolicyDenied, Reason: reason}
}

func PolicyRequire(action string) *KernelError {
	return &KernelError{Kind: ErrPolicyRequire, Reason: action}
}

func StorageError(reason string) *KernelError {
	return &KernelError{Kind: ErrStorageError, Reason: reason}
}
