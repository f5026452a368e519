//go:build !linux && !windows

package spawner

import "syscall"

// sysProcAttr on non-Linux platforms still isolates the process group
// where the OS supports it; Pdeathsig has no portable equivalent.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
