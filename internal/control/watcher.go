package control

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ramcherukuri/kineto/internal/logging"
)

// fileWatcher nudges the scheduler when the base config file changes, so a
// reload does not have to wait out the base interval. The parent directory
// is watched rather than the file itself to survive editors and config
// management tools that replace the file by rename.
type fileWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	notify  func()
	logger  *logging.Logger
	done    chan struct{}
}

func newFileWatcher(path string, notify func(), logger *logging.Logger) (*fileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}

	fw := &fileWatcher{
		watcher: w,
		path:    filepath.Clean(path),
		notify:  notify,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

func (fw *fileWatcher) loop() {
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				fw.notify()
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error("config file watch error", "error", err)
		case <-fw.done:
			return
		}
	}
}

func (fw *fileWatcher) close() {
	close(fw.done)
	_ = fw.watcher.Close()
}
