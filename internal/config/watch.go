package config

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 100 * time.Millisecond

// TuningWatcher reloads a tuning file into a TuningStore whenever it changes.
type TuningWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	store   *TuningStore
	Reloads chan Tuning // receives every successfully applied tuning
	closeCh chan struct{}
	done    chan struct{}
	once    sync.Once
}

// WatchTuning starts watching path. The parent directory is watched so
// editors that replace the file atomically are handled.
func WatchTuning(path string, store *TuningStore) (*TuningWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, err
	}

	tw := &TuningWatcher{
		watcher: w,
		path:    filepath.Clean(path),
		store:   store,
		Reloads: make(chan Tuning, 4),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go tw.run()
	return tw, nil
}

// Close stops the watcher.
func (tw *TuningWatcher) Close() error {
	var err error
	tw.once.Do(func() {
		close(tw.closeCh)
		err = tw.watcher.Close()
		<-tw.done
	})
	return err
}

func (tw *TuningWatcher) run() {
	defer close(tw.done)
	// Editors emit bursts of events per save; reload once the burst settles.
	var pending <-chan time.Time
	for {
		select {
		case <-tw.closeCh:
			return
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != tw.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)
		case <-pending:
			pending = nil
			tw.reload()
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️ tuning watcher: %v", err)
		}
	}
}

func (tw *TuningWatcher) reload() {
	t, err := LoadTuningFile(tw.path, tw.store.Tuning())
	if err != nil {
		log.Printf("⚠️ tuning reload rejected: %v", err)
		return
	}
	tw.store.Store(t)
	log.Printf("🔧 tuning reloaded from %s", tw.path)
	select {
	case tw.Reloads <- t:
	default:
	}
}
