package ipc

import (
	"strconv"

	"github.com/pandagen/kernel/core"
)

// Compatibility is the result of checking a SchemaVersion against a
// SchemaPolicy (spec §4.D).
type Compatibility int

const (
	Compatible Compatibility = iota
	UpgradeRequired
	Unsupported
)

// SchemaPolicy governs which envelope SchemaVersions a channel accepts,
// keyed per action (spec §3 Channel.allowed_schemas).
type SchemaPolicy struct {
	CurrentMajor int
	CurrentMinor int
	MinMajor     int
}

// Check classifies v against the policy (spec §4.D):
//
//	Compatible:      major == M && minor <= m
//	UpgradeRequired: major == M && minor >  m
//	Unsupported:     major < min_major || major > M
func (p SchemaPolicy) Check(v SchemaVersion) Compatibility {
	if v.Major < p.MinMajor || v.Major > p.CurrentMajor {
		return Unsupported
	}
	if v.Major == p.CurrentMajor && v.Minor > p.CurrentMinor {
		return UpgradeRequired
	}
	return Compatible
}

// Validate returns a SchemaMismatch error for anything that isn't
// Compatible.
func (p SchemaPolicy) Validate(v SchemaVersion) *core.KernelError {
	switch p.Check(v) {
	case Compatible:
		return nil
	default:
		return core.SchemaMismatch(
			formatVersion(p.CurrentMajor, p.CurrentMinor),
			formatVersion(v.Major, v.Minor),
		)
	}
}

func formatVersion(major, minor int) string {
	return strconv.Itoa(major) + "." + strconv.Itoa(minor)
}
