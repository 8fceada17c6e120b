package ui

import (
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ExternalChangeMsg tells the running program that another process wrote
// the storage file and the tree should be reloaded.
type ExternalChangeMsg struct{}

const watchDebounce = 250 * time.Millisecond

// Watcher reloads the UI when the backing store changes on disk. Only
// file-backed stores get one; memory and remote backends have nothing to
// watch.
type Watcher struct {
	fsw  *fsnotify.Watcher
	file string
	done chan struct{}
	log  zerolog.Logger
}

// NewWatcher watches the directory containing path and forwards debounced
// change notifications into the program. Watching the directory instead of
// the file survives rename-based writes.
func NewWatcher(path string, program *tea.Program, log zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		fsw:  fsw,
		file: filepath.Base(path),
		done: make(chan struct{}),
		log:  log,
	}
	go w.run(program)
	return w, nil
}

func (w *Watcher) run(program *tea.Program) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.file {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				program.Send(ExternalChangeMsg{})
			})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("storage watcher error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) Stop() {
	close(w.done)
	w.fsw.Close()
}
