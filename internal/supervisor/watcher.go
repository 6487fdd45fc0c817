package supervisor

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/firefly-engineering/rtctl/internal/logging"
)

// watcherBuffer bounds undelivered change notifications per consumer.
const watcherBuffer = 16

// configWatcher watches the runtime config and the service directories.
// Config file changes go to configChanges; every other change goes to the
// unit's loader hook.
type configWatcher struct {
	w          *fsnotify.Watcher
	configPath string

	configChanges chan string
	hookChanges   chan string

	done      chan struct{}
	closeOnce sync.Once
}

func newConfigWatcher(configPath string, dirs []string) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Editors replace files on save, so watch directories, not files.
	watched := map[string]bool{}
	for _, dir := range append([]string{filepath.Dir(configPath)}, dirs...) {
		dir = filepath.Clean(dir)
		if watched[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			_ = w.Close()
			return nil, err
		}
		watched[dir] = true
	}

	cw := &configWatcher{
		w:             w,
		configPath:    filepath.Clean(configPath),
		configChanges: make(chan string, watcherBuffer),
		hookChanges:   make(chan string, watcherBuffer),
		done:          make(chan struct{}),
	}
	go cw.run()
	return cw, nil
}

func (cw *configWatcher) run() {
	defer close(cw.done)
	defer close(cw.hookChanges)

	for {
		select {
		case ev, ok := <-cw.w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			target := cw.hookChanges
			if filepath.Clean(ev.Name) == cw.configPath {
				target = cw.configChanges
			}
			select {
			case target <- ev.Name:
			default:
				logging.Debug("dropping file change notification", "path", ev.Name)
			}
		case err, ok := <-cw.w.Errors:
			if !ok {
				return
			}
			logging.Warn("config watcher error", "error", err)
		}
	}
}

func (cw *configWatcher) hook() *LoaderHook {
	return &LoaderHook{Changes: cw.hookChanges}
}

// Close stops watching. It is safe to call more than once.
func (cw *configWatcher) Close() error {
	var err error
	cw.closeOnce.Do(func() {
		err = cw.w.Close()
		<-cw.done
	})
	return err
}
