//go:build unix

package sigbridge

import (
	"os"
	"syscall"
)

// OnDemandSignal is the signal reserved for triggering on-demand profiling.
var OnDemandSignal os.Signal = syscall.SIGUSR2

// Raise sends the on-demand signal to the current process.
func Raise() error {
	return syscall.Kill(os.Getpid(), syscall.SIGUSR2)
}
