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

// defaultFileStopDelay is the grace period a terminated FileProvider
// waits for the consumption monitor to drain trailing events before it
// gives up and force-removes the file.
const defaultFileStopDelay = 10 * time.Second

// errProviderStopped is a sentinel used internally to short-circuit the
// run sequence when Stop is called before delivery completed; it is
// never surfaced to callers of Wait/Stop.
var errProviderStopped = errs.NewGenericIoError("", "provider stopped before delivery completed")

// FileProvider delivers plaintext as a regular file that self-destroys
// after being read outCount times, tracked via a filesystem-change
// consumption monitor.
type FileProvider struct {
	base
	path      string
	outCount  int
	stopDelay time.Duration
	ui        *ui.Sink
}

// NewFileProvider constructs a FileProvider writing source's plaintext to
// path, unlinking it after outCount close events (0 is treated as 1).
func NewFileProvider(source Source, path string, outCount int, sink *ui.Sink) *FileProvider {
	if outCount <= 0 {
		outCount = 1
	}
	if sink == nil {
		sink = ui.New(false, false)
	}
	return &FileProvider{base: newBase(source), path: path, outCount: outCount, stopDelay: defaultFileStopDelay, ui: sink}
}

// SetStopDelay overrides the default 10s grace delay. Tests use this to
// exercise forced shutdown without waiting 10 real seconds.
func (p *FileProvider) SetStopDelay(d time.Duration) { p.stopDelay = d }

func (p *FileProvider) Start() error {
	p.wg.Add(1)
	go p.run()
	return nil
}

func (p *FileProvider) run() {
	defer p.wg.Done()

	file, err := p.createFile()
	if err != nil {
		p.finish(err)
		return
	}
	p.setState(SinkOpen)

	p.setState(Delivering)
	err = p.waitAndWrite(file)
	file.Close()
	if err != nil {
		// The secret may already have been fetched via GetAsset by the
		// time waitAndWrite failed (e.g. the write itself failed), so the
		// derived SecretBuffer must be zeroed on every failure path, not
		// only on success.
		p.source.Destroy()
		os.Remove(p.path)
		if err == errProviderStopped {
			p.finish(nil)
			return
		}
		p.finish(err)
		return
	}

	p.source.Destroy()
	p.setState(AwaitingConsumption)

	p.finish(p.monitorConsumption())
}

// createFile creates the sink file create-if-absent, truncate,
// write-only, non-blocking, close-on-exec, do-not-follow-symlinks, mode
// 0600, per §4.5.2 step 1. EINTR retries with a 250ms backoff; any other
// error is fatal. O_NOFOLLOW refuses to open through a symlink planted at
// the configured path.
func (p *FileProvider) createFile() (*os.File, error) {
	for {
		fd, err := unix.Open(p.path, unix.O_CREAT|unix.O_TRUNC|unix.O_WRONLY|unix.O_NONBLOCK|unix.O_CLOEXEC|unix.O_NOFOLLOW, 0o600)
		if err == nil {
			return os.NewFile(uintptr(fd), p.path), nil
		}
		if err == unix.EINTR {
			time.Sleep(250 * time.Millisecond)
			continue
		}
		return nil, errs.NewOpenError(p.path, "%v", errs.FileError(err, p.path))
	}
}

func (p *FileProvider) waitAndWrite(file *os.File) error {
	for {
		if p.terminate.Load() {
			return errProviderStopped
		}
		ready, err := p.source.IsReady()
		if err != nil {
			return err
		}
		if ready {
			break
		}
		time.Sleep(250 * time.Millisecond)
	}

	buf, err := p.source.GetAsset()
	if err != nil {
		return err
	}
	return p.writeAll(file, buf.Bytes())
}

// writeAll writes data using non-blocking write semantics, mirroring
// FifoProvider.writeAll: EAGAIN/EWOULDBLOCK sleeps 100ms and retries,
// EINTR retries immediately, any other error is fatal, and partial
// writes accumulate until the whole buffer has been delivered.
func (p *FileProvider) writeAll(file *os.File, data []byte) error {
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
		default:
			return errs.NewGenericIoError(p.path, "%v", errs.FileError(err, p.path))
		}
	}
	return nil
}

func (p *FileProvider) monitorConsumption() error {
	monitor, err := newConsumptionMonitor(p.path)
	if err != nil {
		os.Remove(p.path)
		return err
	}
	defer monitor.Close()

	allowance := p.outCount
	opens, accesses, closes := 0, 0, 0

	for {
		select {
		case ev := <-monitor.Events():
			switch {
			case ev.Open:
				opens++
			case ev.Access:
				accesses++
			case ev.isClose():
				closes++
				allowance--
				if allowance < 0 {
					allowance = 0
				}
				if allowance == 0 {
					p.ui.Debug("%s: observed open=%d access=%d close=%d", p.path, opens, accesses, closes)
					if rmErr := os.Remove(p.path); rmErr != nil && !os.IsNotExist(rmErr) {
						return errs.NewGenericIoError(p.path, "error unlinking after consumption: %v", rmErr)
					}
					p.ui.UserMsg("%s: consumed and removed", p.path)
					return nil
				}
			}
		case err := <-monitor.Errors():
			os.Remove(p.path)
			return err
		case <-time.After(pollInterval):
			if p.terminate.Load() {
				time.Sleep(p.stopDelay)
				os.Remove(p.path)
				return nil
			}
		}
	}
}

// Stop is idempotent, matching FifoProvider.Stop: callers may invoke it
// once via WaitAll and again via StopAll without double-running shutdown.
func (p *FileProvider) Stop() error {
	p.stopOnce.Do(func() {
		p.terminate.Store(true)
		p.wg.Wait()
	})
	return p.err
}
