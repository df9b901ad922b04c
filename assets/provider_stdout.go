package assets

import (
	"bufio"
	"io"
	"time"
)

// StdoutProvider delivers plaintext by writing it to standard output once
// the source becomes ready. It is the only provider variant permitted to
// write to stdout; all diagnostic output from a run using this provider
// must go to stderr instead, so the plaintext stream is never corrupted.
type StdoutProvider struct {
	base
	out *bufio.Writer
}

// NewStdoutProvider constructs a StdoutProvider over source, writing to
// out (os.Stdout in production, an in-memory buffer in tests).
func NewStdoutProvider(source Source, out io.Writer) *StdoutProvider {
	return &StdoutProvider{base: newBase(source), out: bufio.NewWriter(out)}
}

func (p *StdoutProvider) Start() error {
	p.wg.Add(1)
	go p.run()
	return nil
}

func (p *StdoutProvider) run() {
	defer p.wg.Done()

	for {
		if p.terminate.Load() {
			p.finish(nil)
			return
		}
		ready, err := p.source.IsReady()
		if err != nil {
			p.finish(err)
			return
		}
		if ready {
			break
		}
		time.Sleep(pollInterval)
	}

	p.setState(SourceReady)
	buf, err := p.source.GetAsset()
	if err != nil {
		p.finish(err)
		return
	}

	p.setState(Delivering)
	if _, err := p.out.Write(buf.Bytes()); err != nil {
		p.source.Destroy()
		p.finish(err)
		return
	}
	if err := p.out.Flush(); err != nil {
		p.source.Destroy()
		p.finish(err)
		return
	}

	p.source.Destroy()
	p.finish(nil)
}

// Stop is idempotent, matching FifoProvider.Stop: callers may invoke it
// once via WaitAll and again via StopAll without double-running shutdown.
func (p *StdoutProvider) Stop() error {
	p.stopOnce.Do(func() {
		p.terminate.Store(true)
		p.wg.Wait()
	})
	return p.err
}
