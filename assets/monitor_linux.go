//go:build linux

package assets

import (
	"encoding/binary"
	"os"

	"golang.org/x/sys/unix"

	"github.com/nearedge/latchy/errs"
)

// inotifyMonitor is the Linux consumption monitor: a raw inotify watch
// with the exact mask the FileProvider consumption step calls for
// (IN_OPEN|IN_ACCESS|IN_CLOSE_WRITE|IN_CLOSE_NOWRITE), read directly via
// golang.org/x/sys/unix rather than through fsnotify, since fsnotify does
// not expose IN_ACCESS/IN_CLOSE on any platform.
type inotifyMonitor struct {
	fd     int
	file   *os.File
	wd     int
	events chan consumptionEvent
	errs   chan error
	done   chan struct{}
}

func newConsumptionMonitor(path string) (consumptionMonitor, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return nil, errs.NewGenericIoError(path, "inotify_init1: %v", err)
	}
	wd, err := unix.InotifyAddWatch(fd, path, unix.IN_OPEN|unix.IN_ACCESS|unix.IN_CLOSE_WRITE|unix.IN_CLOSE_NOWRITE)
	if err != nil {
		unix.Close(fd)
		return nil, errs.NewGenericIoError(path, "inotify_add_watch: %v", err)
	}

	m := &inotifyMonitor{
		fd:     fd,
		file:   os.NewFile(uintptr(fd), "inotify"),
		wd:     wd,
		events: make(chan consumptionEvent, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go m.run()
	return m, nil
}

func (m *inotifyMonitor) run() {
	const headerSize = 16 // struct inotify_event: wd,mask,cookie,len (4 x uint32)
	buf := make([]byte, 4096)

	for {
		n, err := m.file.Read(buf)
		if err != nil {
			select {
			case <-m.done:
				return
			default:
			}
			m.errs <- errs.NewGenericIoError("", "inotify read: %v", err)
			return
		}

		offset := 0
		for offset+headerSize <= n {
			mask := binary.LittleEndian.Uint32(buf[offset+4 : offset+8])
			nameLen := binary.LittleEndian.Uint32(buf[offset+12 : offset+16])
			offset += headerSize + int(nameLen)

			ev := consumptionEvent{
				Open:         mask&unix.IN_OPEN != 0,
				Access:       mask&unix.IN_ACCESS != 0,
				CloseWrite:   mask&unix.IN_CLOSE_WRITE != 0,
				CloseNoWrite: mask&unix.IN_CLOSE_NOWRITE != 0,
			}
			select {
			case m.events <- ev:
			case <-m.done:
				return
			}
		}
	}
}

func (m *inotifyMonitor) Events() <-chan consumptionEvent { return m.events }
func (m *inotifyMonitor) Errors() <-chan error             { return m.errs }

func (m *inotifyMonitor) Close() error {
	close(m.done)
	return m.file.Close()
}
