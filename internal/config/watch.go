package config

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/localmind/cortex/internal/logging"
	"github.com/localmind/cortex/pkg/types"
)

// Watcher reloads configuration whenever one of the on-disk config files
// changes and hands the merged result to OnChange. It debounces bursts of
// filesystem events (editors often emit several writes per save) and
// ignores reloads that fail to parse, so a transient half-written file
// never clobbers the last-known-good config.
type Watcher struct {
	directory string
	onChange  func(*types.Config)
	watcher   *fsnotify.Watcher
	done      chan struct{}
}

// debounceWindow absorbs the multiple fsnotify events a single editor save
// typically produces (temp-file write + rename + chmod).
const debounceWindow = 250 * time.Millisecond

// WatchConfig watches the global and project config directories for
// changes and invokes onChange with the freshly reloaded, merged config
// each time one settles. The returned Watcher must be closed by the
// caller.
func WatchConfig(directory string, onChange func(*types.Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	globalPath := GetPaths().Config
	if err := fsw.Add(globalPath); err != nil {
		logging.Warn().Err(err).Str("path", globalPath).Msg("config watch: global config dir unwatchable")
	}
	if directory != "" {
		projectPath := directory + "/.cortex"
		if err := fsw.Add(projectPath); err != nil {
			logging.Debug().Err(err).Str("path", projectPath).Msg("config watch: project config dir unwatchable")
		}
	}

	w := &Watcher{
		directory: directory,
		onChange:  onChange,
		watcher:   fsw,
		done:      make(chan struct{}),
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var timer *time.Timer
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounceWindow, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Msg("config watch: fsnotify error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.directory)
	if err != nil {
		logging.Warn().Err(err).Msg("config watch: reload failed, keeping previous config")
		return
	}
	w.onChange(cfg)
}

// Close stops the watcher goroutine and releases the underlying fsnotify
// handle.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
