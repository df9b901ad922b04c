//go:build !linux

package assets

import (
	"github.com/fsnotify/fsnotify"

	"github.com/nearedge/latchy/errs"
)

// fsnotifyMonitor is the portable consumption monitor for platforms other
// than Linux. fsnotify has no cross-platform equivalent of IN_ACCESS or a
// read/write-aware IN_CLOSE, so it cannot distinguish "opened for read"
// from "closed after reading" the way Linux's raw inotify mask can; any
// Write/Chmod touch on the path is treated as a close-equivalent event,
// which is the same relaxed semantics spec.md's fallback note allows
// ("a periodic stat-based polling loop with the same semantics" — we use
// fsnotify's event stream instead of hand-rolled stat polling, since it is
// the teacher ecosystem's own idiom for this exact concern).
type fsnotifyMonitor struct {
	watcher *fsnotify.Watcher
	events  chan consumptionEvent
	errs    chan error
	done    chan struct{}
}

func newConsumptionMonitor(path string) (consumptionMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errs.NewGenericIoError(path, "fsnotify.NewWatcher: %v", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, errs.NewGenericIoError(path, "fsnotify.Add: %v", err)
	}

	m := &fsnotifyMonitor{
		watcher: watcher,
		events:  make(chan consumptionEvent, 16),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
	}
	go m.run()
	return m, nil
}

func (m *fsnotifyMonitor) run() {
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			switch {
			case ev.Op&fsnotify.Write != 0, ev.Op&fsnotify.Chmod != 0:
				m.events <- consumptionEvent{CloseWrite: true}
			case ev.Op&(fsnotify.Create|fsnotify.Rename) != 0:
				m.events <- consumptionEvent{Open: true}
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.errs <- errs.NewGenericIoError("", "fsnotify: %v", err)
			return
		case <-m.done:
			return
		}
	}
}

func (m *fsnotifyMonitor) Events() <-chan consumptionEvent { return m.events }
func (m *fsnotifyMonitor) Errors() <-chan error             { return m.errs }

func (m *fsnotifyMonitor) Close() error {
	close(m.done)
	return m.watcher.Close()
}
