package logging

import (
	"sync"
	"sync/atomic"
)

// VerboseLevelOff disables verbose logging entirely.
const VerboseLevelOff = -1

// The process-wide verbose backend. There is a single writer (the config
// scheduler) and many readers on instrumentation hot paths, so the level is
// kept in an atomic for lock-free Enabled checks; the module filter changes
// together with the level and sits behind the mutex.
var verbose = struct {
	level   atomic.Int64
	mu      sync.RWMutex
	modules map[string]struct{}
}{modules: map[string]struct{}{}}

func init() {
	verbose.level.Store(VerboseLevelOff)
}

// SetVerboseLevel sets the process-wide verbose level and module filter.
// A level below zero turns verbose logging off. An empty module list means
// all modules.
func SetVerboseLevel(level int, modules []string) {
	verbose.mu.Lock()
	verbose.modules = make(map[string]struct{}, len(modules))
	for _, m := range modules {
		verbose.modules[m] = struct{}{}
	}
	verbose.mu.Unlock()
	verbose.level.Store(int64(level))
}

// VerboseLevel returns the current process-wide verbose level.
func VerboseLevel() int {
	return int(verbose.level.Load())
}

// VerboseModules returns the current module filter. Empty means all modules.
func VerboseModules() []string {
	verbose.mu.RLock()
	defer verbose.mu.RUnlock()
	mods := make([]string, 0, len(verbose.modules))
	for m := range verbose.modules {
		mods = append(mods, m)
	}
	return mods
}

// VerboseEnabled reports whether a verbose record at the given level for the
// given module would be emitted. The level check is lock-free so callers can
// gate hot-path logging cheaply.
func VerboseEnabled(level int, module string) bool {
	cur := verbose.level.Load()
	if cur < 0 || int64(level) > cur {
		return false
	}
	verbose.mu.RLock()
	defer verbose.mu.RUnlock()
	if len(verbose.modules) == 0 {
		return true
	}
	_, ok := verbose.modules[module]
	return ok
}
