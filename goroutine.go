package kineto

import (
	"bytes"
	"runtime"
	"strconv"
)

// goroutineID parses the current goroutine's id from the stack header
// ("goroutine N [running]:"). There is no cheaper supported way to identify
// a goroutine, and the id is only used to detect cross-goroutine misuse of
// the client init callback.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
