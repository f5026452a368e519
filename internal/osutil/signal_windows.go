//go:build windows

package osutil

import "os"

// Alive opens the process handle; failure to open is treated as
// non-existence. Windows has no kill(pid, 0) equivalent.
func Alive(pid uint32) (bool, error) {
	_, err := os.FindProcess(int(pid))
	if err != nil {
		return false, nil
	}
	return true, nil
}

func Terminate(pid uint32) error {
	p, err := os.FindProcess(int(pid))
	if err != nil {
		return err
	}
	return p.Kill()
}

func Kill(pid uint32) error {
	return Terminate(pid)
}

func TerminateGroup(pid uint32) error {
	return Terminate(pid)
}

func KillGroup(pid uint32) error {
	return Terminate(pid)
}
