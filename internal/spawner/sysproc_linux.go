//go:build linux

package spawner

import "syscall"

// sysProcAttr isolates the child into its own process group (so the whole
// group can be signaled together) and asks the kernel to kill it if the
// supervisor itself dies, mirroring the teacher's process_manager.go
// spawn attributes exactly.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}
