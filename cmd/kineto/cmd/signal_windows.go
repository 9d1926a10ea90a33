//go:build windows

package cmd

import "errors"

func signalProcess(int) error {
	return errors.New("on-demand trigger signals are not supported on windows")
}
