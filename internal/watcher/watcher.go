// Package watcher monitors a drop folder for roster files and reports each
// one once its contents have settled.
package watcher

import (
	"crypto/sha256"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle is how long a roster file must stay unchanged before it is
// reported.
const DefaultSettle = time.Second

var errNotDir = errors.New("not a directory")

// Event is a roster file that has settled.
type Event struct {
	Path      string
	Hash      [32]byte
	Size      int64
	Timestamp time.Time
}

// Watcher monitors directories for roster files.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dirs      []string
	settle    time.Duration

	// path -> last modification time
	state   map[string]time.Time
	stateMu sync.RWMutex

	events chan Event
	errors chan error

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a watcher for dirs. A non-positive settle uses DefaultSettle.
func New(dirs []string, settle time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		dirs:      dirs,
		settle:    settle,
		state:     make(map[string]time.Time),
		events:    make(chan Event, 16),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// IsRosterFile reports whether path has a roster extension.
func IsRosterFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// Events returns the channel of settled roster files.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of watch and read errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start watches every directory and queues the roster files already in them.
func (w *Watcher) Start() error {
	for _, dir := range w.dirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		info, err := os.Stat(absDir)
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return &os.PathError{Op: "watch", Path: absDir, Err: errNotDir}
		}
		if err := w.fsWatcher.Add(absDir); err != nil {
			return err
		}

		entries, err := os.ReadDir(absDir)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if !entry.IsDir() && IsRosterFile(entry.Name()) {
				w.trackFile(filepath.Join(absDir, entry.Name()))
			}
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.settleLoop()
	return nil
}

// Stop shuts the watcher down and closes both channels. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		close(w.events)
		close(w.errors)
		err = w.fsWatcher.Close()
	})
	return err
}

func (w *Watcher) trackFile(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}

	w.stateMu.Lock()
	w.state[path] = info.ModTime()
	w.stateMu.Unlock()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !IsRosterFile(event.Name) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || info.IsDir() {
				continue
			}

			w.stateMu.Lock()
			w.state[event.Name] = time.Now()
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *Watcher) settleLoop() {
	defer w.wg.Done()

	tick := w.settle / 2
	if tick > time.Second {
		tick = time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.checkSettled(now)
		}
	}
}

type pendingFile struct {
	path    string
	lastMod time.Time
}

// checkSettled reports files untouched for the settle interval. File reads
// happen without the state lock held.
func (w *Watcher) checkSettled(now time.Time) {
	threshold := now.Add(-w.settle)

	var pending []pendingFile
	w.stateMu.RLock()
	for path, lastMod := range w.state {
		if lastMod.Before(threshold) {
			pending = append(pending, pendingFile{path: path, lastMod: lastMod})
		}
	}
	w.stateMu.RUnlock()

	for _, pf := range pending {
		hash, size, err := HashFile(pf.path)

		w.stateMu.Lock()
		current, tracked := w.state[pf.path]
		if !tracked || current != pf.lastMod {
			// Removed, or written again while it was being read.
			w.stateMu.Unlock()
			continue
		}
		if err != nil {
			delete(w.state, pf.path)
			w.stateMu.Unlock()
			w.sendError(err)
			continue
		}

		select {
		case w.events <- Event{Path: pf.path, Hash: hash, Size: size, Timestamp: now}:
			delete(w.state, pf.path)
		default:
			// Consumer is behind; retry on the next tick.
		}
		w.stateMu.Unlock()
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// HashFile returns the SHA-256 digest and size of the file at path.
func HashFile(path string) ([32]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var hash [32]byte
	copy(hash[:], h.Sum(nil))
	return hash, size, nil
}

// Dirs returns the watched directories.
func (w *Watcher) Dirs() []string {
	return w.dirs
}

// Pending returns the number of files waiting to settle.
func (w *Watcher) Pending() int {
	w.stateMu.RLock()
	defer w.stateMu.RUnlock()
	return len(w.state)
}
