package engine

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// SignalWatcher observes the .overseer/signals directory for external
// stop and pause requests, so an operator can control a running engine
// from outside the process.
type SignalWatcher struct {
	signalsDir string

	mu          sync.RWMutex
	stopSignal  bool
	pauseSignal bool

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once
}

// NewSignalWatcher creates a watcher over projectRoot/.overseer/signals,
// creating the directory if needed. A failed fsnotify setup is not
// fatal; callers then rely on the stat-based fallback in ShouldStop.
func NewSignalWatcher(projectRoot string) (*SignalWatcher, error) {
	signalsDir := filepath.Join(projectRoot, ".overseer", "signals")
	if err := os.MkdirAll(signalsDir, 0755); err != nil {
		return nil, err
	}

	sw := &SignalWatcher{
		signalsDir: signalsDir,
		done:       make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return sw, nil
	}
	if err := watcher.Add(signalsDir); err != nil {
		watcher.Close()
		return sw, nil
	}
	sw.watcher = watcher
	go sw.watch()
	return sw, nil
}

func (sw *SignalWatcher) watch() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			sw.mu.Lock()
			switch filepath.Base(event.Name) {
			case "stop":
				sw.stopSignal = true
			case "pause":
				sw.pauseSignal = true
			}
			sw.mu.Unlock()
		case <-sw.watcher.Errors:
			// Keep watching.
		}
	}
}

// ShouldStop reports whether a stop signal was received. It also stats
// the signal file directly in case the watcher missed the event.
func (sw *SignalWatcher) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(sw.signalsDir, "stop")); err == nil {
		sw.mu.Lock()
		sw.stopSignal = true
		sw.mu.Unlock()
	}
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.stopSignal
}

// ShouldPause reports whether a pause signal was received.
func (sw *SignalWatcher) ShouldPause() bool {
	if _, err := os.Stat(filepath.Join(sw.signalsDir, "pause")); err == nil {
		sw.mu.Lock()
		sw.pauseSignal = true
		sw.mu.Unlock()
	}
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.pauseSignal
}

// SendStop creates the stop signal file.
func (sw *SignalWatcher) SendStop() error {
	return sw.writeSignal("stop")
}

// SendPause creates the pause signal file.
func (sw *SignalWatcher) SendPause() error {
	return sw.writeSignal("pause")
}

func (sw *SignalWatcher) writeSignal(name string) error {
	path := filepath.Join(sw.signalsDir, name)
	return os.WriteFile(path, []byte(time.Now().Format(time.RFC3339)), 0644)
}

// ClearSignals removes signal files and resets in-memory flags.
func (sw *SignalWatcher) ClearSignals() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.stopSignal = false
	sw.pauseSignal = false
	for _, name := range []string{"stop", "pause"} {
		os.Remove(filepath.Join(sw.signalsDir, name))
	}
}

// Close stops the watcher goroutine.
func (sw *SignalWatcher) Close() {
	sw.once.Do(func() {
		close(sw.done)
		if sw.watcher != nil {
			sw.watcher.Close()
		}
	})
}
