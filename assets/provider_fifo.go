package assets

import (
	"errors"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/nearedge/latchy/errs"
	"github.com/nearedge/latchy/ui"
)

// defaultFifoStopDelay is the grace period Stop waits for the
// non-binding consumption monitor to drain trailing events.
const defaultFifoStopDelay = 10 * time.Second

// FifoProvider delivers plaintext through a named pipe, writing it
// exactly once to whichever reader opens the other end. It never unlinks
// the FIFO: a pre-existing pipe belongs to whoever created it, and one
// this provider creates is left in place by policy.
type FifoProvider struct {
	base
	path      string
	monitor   bool
	stopDelay time.Duration
	ui        *ui.Sink
}

// NewFifoProvider constructs a FifoProvider writing to the named pipe at
// path. If monitor is true, a non-binding consumption monitor tracks
// open/read/close activity for diagnostics only — it never gates delivery
// and never causes the pipe to be removed.
func NewFifoProvider(source Source, path string, monitor bool, sink *ui.Sink) *FifoProvider {
	if sink == nil {
		sink = ui.New(false, false)
	}
	return &FifoProvider{base: newBase(source), path: path, monitor: monitor, stopDelay: defaultFifoStopDelay, ui: sink}
}

// SetStopDelay overrides the default 10s grace delay.
func (p *FifoProvider) SetStopDelay(d time.Duration) { p.stopDelay = d }

func (p *FifoProvider) Start() error {
	p.wg.Add(1)
	go p.run()
	return nil
}

func (p *FifoProvider) run() {
	defer p.wg.Done()
	err := p.deliver()
	if err == errProviderStopped {
		err = nil
	}
	p.finish(err)
}

func (p *FifoProvider) deliver() error {
	if err := p.ensureFifo(); err != nil {
		return err
	}

	var mon consumptionMonitor
	if p.monitor {
		m, err := newConsumptionMonitor(p.path)
		if err == nil {
			mon = m
			defer mon.Close()
		}
	}

	file, err := p.openNonBlocking()
	if err != nil {
		return err
	}
	defer file.Close()
	p.setState(SinkOpen)

	if err := p.waitReady(); err != nil {
		return err
	}
	p.setState(SourceReady)

	buf, err := p.source.GetAsset()
	if err != nil {
		return err
	}
	p.setState(Delivering)
	if err := p.writeAll(file, buf.Bytes()); err != nil {
		p.source.Destroy()
		return err
	}

	p.source.Destroy()

	if mon != nil {
		p.drainDiagnostics(mon)
	}

	return nil
}

// ensureFifo creates the FIFO if absent. A pre-existing FIFO (EEXIST) is
// acceptable: we will write to it but policy forbids unlinking it later.
func (p *FifoProvider) ensureFifo() error {
	err := unix.Mkfifo(p.path, 0o600)
	if err == nil || errors.Is(err, os.ErrExist) || err == syscall.EEXIST {
		return nil
	}
	return errs.NewOpenError(p.path, "mkfifo: %v", err)
}

// openNonBlocking opens the FIFO write-only and non-blocking, retrying on
// ENXIO (no reader yet) and EINTR at 250ms intervals.
func (p *FifoProvider) openNonBlocking() (*os.File, error) {
	for {
		if p.terminate.Load() {
			return nil, errProviderStopped
		}
		fd, err := unix.Open(p.path, unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC|unix.O_NOFOLLOW, 0)
		if err == nil {
			return os.NewFile(uintptr(fd), p.path), nil
		}
		if err == unix.ENXIO || err == unix.EINTR {
			time.Sleep(250 * time.Millisecond)
			continue
		}
		return nil, errs.NewOpenError(p.path, "%v", errs.FileError(err, p.path))
	}
}

func (p *FifoProvider) waitReady() error {
	for {
		if p.terminate.Load() {
			return errProviderStopped
		}
		ready, err := p.source.IsReady()
		if err != nil {
			return err
		}
		if ready {
			return nil
		}
		time.Sleep(pollInterval)
	}
}

// writeAll writes data to file using non-blocking write semantics:
// EAGAIN/EWOULDBLOCK sleeps 100ms and retries, EINTR retries immediately,
// EPIPE (reader closed early) fails with BrokenPipe, and partial writes
// accumulate until the whole buffer has been delivered.
func (p *FifoProvider) writeAll(file *os.File, data []byte) error {
	for len(data) > 0 {
		n, err := file.Write(data)
		data = data[n:]
		if err == nil {
			continue
		}
		switch {
		case errors.Is(err, syscall.EAGAIN), errors.Is(err, syscall.EWOULDBLOCK):
			time.Sleep(100 * time.Millisecond)
		case errors.Is(err, syscall.EINTR):
			// retry immediately
		case errors.Is(err, syscall.EPIPE):
			return errs.NewBrokenPipe(p.path)
		default:
			return errs.NewGenericIoError(p.path, "%v", errs.FileError(err, p.path))
		}
	}
	return nil
}

func (p *FifoProvider) drainDiagnostics(mon consumptionMonitor) {
	opens, accesses, closes := 0, 0, 0
	deadline := time.After(200 * time.Millisecond)
	for {
		select {
		case ev := <-mon.Events():
			switch {
			case ev.Open:
				opens++
			case ev.Access:
				accesses++
			case ev.isClose():
				closes++
			}
		case <-deadline:
			p.ui.Debug("%s: open=%d access=%d close=%d", p.path, opens, accesses, closes)
			return
		}
	}
}

// Stop is idempotent: WaitAll already calls Stop once a provider's Wait
// reports completion, and StopAll unconditionally calls Stop again on
// every asset afterward, so a second invocation must not re-sleep the
// monitor's stopDelay on top of the first.
func (p *FifoProvider) Stop() error {
	p.stopOnce.Do(func() {
		p.terminate.Store(true)
		if p.monitor {
			time.Sleep(p.stopDelay)
		}
		p.wg.Wait()
	})
	return p.err
}
