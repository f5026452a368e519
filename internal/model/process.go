// Package model holds the data types shared across the supervisor's
// components: the process table, the policy engine, the monitor, and the
// dispatcher all speak these types rather than reaching into each other's
// internals.
package model

import "time"

// State is the lifecycle state of a managed OS process.
type State string

const (
	StateRunning State = "running"
	StateStopped State = "stopped"
	StateCrashed State = "crashed"
)

// Terminal reports whether the state can no longer transition (I4).
func (s State) Terminal() bool {
	return s == StateStopped || s == StateCrashed
}

// ProcessConfig describes a process launch request.
type ProcessConfig struct {
	Executable     string
	Args           []string
	Cwd            string
	Env            map[string]string
	CaptureOutput  bool
	TimeoutMs      int64
	ResourceLimits ResourceLimits
	AgentID        string
}

// ResourceLimits bounds a process's resource consumption. A zero value
// field means unbounded.
type ResourceLimits struct {
	MaxCPUPercent   float64
	MaxMemoryMB     float64
	MaxFileHandles  int
	MaxCPUTimeSec   int64
	MaxChildProcess int
}

// ProcessStats is a single resource sample for a pid.
type ProcessStats struct {
	CPUPercent   float64
	MemoryMB     float64
	ThreadCount  int
	IOBytesRead  uint64
	IOBytesWrite uint64
	UptimeSec    float64
	SampledAt    time.Time
}

// ManagedProcess is the canonical record for a supervised OS process.
type ManagedProcess struct {
	PID       uint32
	Command   string
	Args      []string
	State     State
	StartTime time.Time
	ExitCode  *int32
	Stats     ProcessStats
	GroupID   string
}

// ProcessGroup is a named collection of managed pids, optionally marked as a
// linear stdout->stdin pipeline whose links are recorded in Edges.
type ProcessGroup struct {
	ID        string
	Name      string
	Processes []uint32
	Pipeline  bool
	Edges     []PipelineEdge
}

// PipelineEdge records a stdout->stdin link from one pipeline member to the
// next. Connected is set when the edge is recorded; the processes' streams
// themselves are not joined.
type PipelineEdge struct {
	SourcePID uint32
	TargetPID uint32
	Connected bool
}
