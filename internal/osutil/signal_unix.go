//go:build !windows

// Package osutil wraps the small set of raw OS primitives the supervisor
// needs to probe and signal pids directly, generalizing the teacher's
// inline syscall.Kill calls in processmgr.superviseProcess into a shared,
// platform-split helper.
package osutil

import "syscall"

// Alive performs the null-signal existence probe (signal 0 never reaches
// the process but still reports ESRCH if it no longer exists).
func Alive(pid uint32) (bool, error) {
	err := syscall.Kill(int(pid), 0)
	if err == nil {
		return true, nil
	}
	if err == syscall.ESRCH {
		return false, nil
	}
	return true, err
}

// Terminate sends SIGTERM to pid.
func Terminate(pid uint32) error {
	return syscall.Kill(int(pid), syscall.SIGTERM)
}

// Kill sends SIGKILL to pid.
func Kill(pid uint32) error {
	return syscall.Kill(int(pid), syscall.SIGKILL)
}

// TerminateGroup sends SIGTERM to pid's process group.
func TerminateGroup(pid uint32) error {
	return syscall.Kill(-int(pid), syscall.SIGTERM)
}

// KillGroup sends SIGKILL to pid's process group.
func KillGroup(pid uint32) error {
	return syscall.Kill(-int(pid), syscall.SIGKILL)
}
