// Package simconfig loads a simulation scenario description from a
// gcfg-style .conf file, the same format and library
// (github.com/gravwell/gcfg) the teacher's ingest/config package uses
// for ingester configuration. A scenario names the kernel-level
// parameters a host needs before it can call kernel.New — tick
// resolution, the round-robin quantum, the default memory budget, an
// optional EDF task table, and logging/storage knobs — everything a
// FaultPlan does not already cover (that lives in package faultscript).
package simconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gravwell/gcfg"

	"github.com/pandagen/kernel/klog"
)

const maxConfigSize int64 = 4 * 1024 * 1024

var (
	ErrConfigFileTooLarge = errors.New("config file is too large")
	ErrMissingNanosPerTick = errors.New("Global.Nanos-Per-Tick must be set")
	ErrInvalidLogLevel    = errors.New("invalid Log-Level")
	ErrInvalidEDFTask     = errors.New("EDF task section missing Period or Budget")
)

// Global holds the [global] section: kernel-wide simulation parameters.
type Global struct {
	Nanos_Per_Tick  uint64
	Quantum_Ticks   uint64
	Memory_Budget   uint64
	Log_Level       string
	Log_File        string
	Storage_Path    string // empty selects an in-memory RAM disk
	Storage_Blocks  uint64
	Storage_Block_Size uint64
}

// EDFTask describes one admitted real-time task, named by its section
// header (e.g. [edf-task "sensor-poll"]).
type EDFTask struct {
	First_Deadline uint64
	Period         uint64
	Budget         uint64
}

// Scenario is the root of a simulation config file, mirroring
// ingest/config's top-level cfgType pattern (e.g. HttpIngester's
// cfgType): one exported Global plus a map of named sub-sections, the
// map's field name itself giving the section name gcfg matches
// (EDF_Task -> `[edf-task "name"]`, underscores become hyphens).
type Scenario struct {
	Global  Global
	EDF_Task map[string]*EDFTask
}

// LoadFile reads and parses path, then verifies it (spec ingest/config's
// LoadConfigFile + Verify pattern).
func LoadFile(path string) (*Scenario, error) {
	fin, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fin.Close()

	fi, err := fin.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxConfigSize {
		return nil, ErrConfigFileTooLarge
	}

	bb := bytes.NewBuffer(nil)
	if _, err := io.Copy(bb, fin); err != nil {
		return nil, err
	}
	return LoadBytes(bb.Bytes())
}

// LoadBytes parses raw config bytes and verifies the result.
func LoadBytes(b []byte) (*Scenario, error) {
	var sc Scenario
	sc.EDF_Task = make(map[string]*EDFTask)
	if err := gcfg.ReadStringInto(&sc, string(b)); err != nil {
		return nil, err
	}
	if err := sc.Verify(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Verify checks the parsed scenario for sensible values and fills in
// defaults, the same shape as ingest/config.IngestConfig.Verify.
func (sc *Scenario) Verify() error {
	if sc.Global.Nanos_Per_Tick == 0 {
		return ErrMissingNanosPerTick
	}
	if sc.Global.Quantum_Ticks == 0 {
		sc.Global.Quantum_Ticks = 1
	}
	if sc.Global.Storage_Block_Size == 0 {
		sc.Global.Storage_Block_Size = 512
	}
	if sc.Global.Storage_Blocks == 0 {
		sc.Global.Storage_Blocks = 1024
	}
	sc.Global.Log_Level = strings.ToUpper(strings.TrimSpace(sc.Global.Log_Level))
	if _, err := logLevel(sc.Global.Log_Level); err != nil {
		return err
	}
	for name, t := range sc.EDF_Task {
		if t == nil || t.Period == 0 || t.Budget == 0 {
			return fmt.Errorf("%w: %q", ErrInvalidEDFTask, name)
		}
	}
	return nil
}

func logLevel(s string) (klog.Level, error) {
	switch s {
	case "", "OFF":
		return klog.OFF, nil
	case "DEBUG":
		return klog.DEBUG, nil
	case "INFO":
		return klog.INFO, nil
	case "WARN":
		return klog.WARN, nil
	case "ERROR":
		return klog.ERROR, nil
	case "CRITICAL":
		return klog.CRITICAL, nil
	default:
		return 0, ErrInvalidLogLevel
	}
}

// Logger builds the *klog.Logger described by the Global section: a
// discard logger if Log-File is empty, else a file-backed logger at the
// configured level.
func (sc *Scenario) Logger() (*klog.Logger, error) {
	lvl, err := logLevel(sc.Global.Log_Level)
	if err != nil {
		return nil, err
	}
	if sc.Global.Log_File == "" {
		return klog.NewDiscard(), nil
	}
	f, err := os.OpenFile(sc.Global.Log_File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %q: %w", sc.Global.Log_File, err)
	}
	l := klog.New(f)
	l.SetLevel(lvl)
	return l, nil
}
