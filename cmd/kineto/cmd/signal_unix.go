//go:build unix

package cmd

import "syscall"

// signalProcess sends the on-demand trigger signal to another process.
func signalProcess(pid int) error {
	return syscall.Kill(pid, syscall.SIGUSR2)
}
