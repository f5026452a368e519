//go:build windows

package spawner

import "syscall"

// sysProcAttr on Windows has no process-group or death-signal equivalent;
// each child is its own job in practice.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{}
}
