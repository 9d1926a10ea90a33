//go:build windows

package sigbridge

import (
	"errors"
	"os"
	"syscall"
)

// OnDemandSignal is defined for compilation only; SIGUSR2 cannot be
// delivered on Windows, so the bridge stays effectively inert there.
var OnDemandSignal os.Signal = syscall.Signal(12)

// Raise is unsupported on Windows.
func Raise() error {
	return errors.New("on-demand signal not supported on windows")
}
