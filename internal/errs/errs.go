// Package errs defines the supervisor's stable error taxonomy (spec §7) and
// the single typed error value every component raises. The Dispatcher is
// the only place that unwraps a SupervisorError into the wire envelope; no
// other component is allowed to invent ad-hoc error shapes for anything
// client-visible.
package errs

import (
	"errors"
	"fmt"
)

// Code is one of the stable taxonomy codes from spec §7.
type Code string

const (
	// Process lifecycle
	ProcessNotFound        Code = "ProcessNotFound"
	ProcessNotRunning      Code = "ProcessNotRunning"
	ChildProcessNotFound   Code = "ChildProcessNotFound"

	// Spawn
	SpawnFailed        Code = "SpawnFailed"
	ExecutableNotFound Code = "ExecutableNotFound"

	// Permission / security
	PermissionDenied  Code = "PermissionDenied"
	SecurityViolation Code = "SecurityViolation"
	NotInAllowlist    Code = "NotInAllowlist"
	DangerousExecutable Code = "DangerousExecutable"
	SetuidBlocked     Code = "SetuidBlocked"
	ShellBlocked      Code = "ShellBlocked"

	// Validation
	ArgumentInjection          Code = "ArgumentInjection"
	ArgumentTraversal          Code = "ArgumentTraversal"
	WorkingDirectoryRestricted Code = "WorkingDirectoryRestricted"
	EnvVarBlocked              Code = "EnvVarBlocked"
	EnvVarInjection            Code = "EnvVarInjection"
	EnvVarTooLong              Code = "EnvVarTooLong"
	EnvSizeExceeded            Code = "EnvSizeExceeded"

	// Resources
	CpuLimitExceeded       Code = "CpuLimitExceeded"
	MemoryLimitExceeded    Code = "MemoryLimitExceeded"
	CpuTimeLimitExceeded   Code = "CpuTimeLimitExceeded"
	ConcurrentLimitExceeded Code = "ConcurrentLimitExceeded"
	RateLimitExceeded      Code = "RateLimitExceeded"

	// I/O
	StdinNotAvailable Code = "StdinNotAvailable"
	StdinNotWritable  Code = "StdinNotWritable"
	StdinWriteFailed  Code = "StdinWriteFailed"

	// Termination
	TerminationFailed Code = "TerminationFailed"
	TimeoutExceeded   Code = "TimeoutExceeded"
	SignalToUnmanaged Code = "SignalToUnmanaged"

	// Groups / services
	GroupNotFound   Code = "GroupNotFound"
	ServiceNotFound Code = "ServiceNotFound"
	ServiceExists   Code = "ServiceExists"

	// System
	OutOfMemory          Code = "OutOfMemory"
	OutOfFileDescriptors Code = "OutOfFileDescriptors"

	// Config
	InvalidConfig Code = "InvalidConfig"

	Unknown Code = "Unknown"
)

// SupervisorError is the single error type carried across component
// boundaries. Remediation is an optional human-readable hint surfaced to
// the calling agent (spec §7 ErrorResponse.remediation).
type SupervisorError struct {
	Code        Code
	Message     string
	Remediation string
	Cause       error
}

func New(code Code, message string) *SupervisorError {
	return &SupervisorError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *SupervisorError {
	return &SupervisorError{Code: code, Message: message, Cause: cause}
}

func (e *SupervisorError) WithRemediation(r string) *SupervisorError {
	e.Remediation = r
	return e
}

func (e *SupervisorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SupervisorError) Unwrap() error {
	return e.Cause
}

// As extracts a *SupervisorError from err. ok is false when err is nil or
// carries no *SupervisorError; mapping such errors to Unknown is left to
// the caller.
func As(err error) (*SupervisorError, bool) {
	if err == nil {
		return nil, false
	}
	var se *SupervisorError
	if ok := errors.As(err, &se); ok {
		return se, true
	}
	return nil, false
}
