package assets

import (
	"os"

	"github.com/nearedge/latchy/config"
	"github.com/nearedge/latchy/errs"
	"github.com/nearedge/latchy/tang"
	"github.com/nearedge/latchy/ui"
)

// asset pairs one source with its provider, or stands alone in dump mode
// where no provider is built.
type asset struct {
	source   Source
	provider Provider
}

// List orchestrates N (source, provider) pairs built from a parsed
// configuration: it builds every asset up front, rolling back whatever it
// already built if any single entry fails to construct, then starts and
// stops them as a unit.
type List struct {
	assets   []asset
	dumpOnly bool
	ui       *ui.Sink
}

// Build constructs a List from cfg. If dumpOnly is true, each source is
// constructed and DumpInfo is collected but no provider is built and
// nothing is started. Construction failure midway rolls back (stops)
// every asset already built before the error is returned, so a partial
// List is never left running.
func Build(cfg []config.AssetConfig, client *tang.Client, dumpOnly bool, sink *ui.Sink, stdinData []byte) (*List, []string, error) {
	if sink == nil {
		sink = ui.New(false, false)
	}
	l := &List{dumpOnly: dumpOnly, ui: sink}

	var dumps []string
	for i := range cfg {
		entry := cfg[i]
		source, err := buildSource(entry, client, stdinData)
		if err != nil {
			l.StopAll()
			return nil, nil, err
		}

		if dumpOnly {
			dumps = append(dumps, source.DumpInfo())
			l.assets = append(l.assets, asset{source: source})
			continue
		}

		provider, err := buildProvider(entry, source, sink)
		if err != nil {
			source.Destroy()
			l.StopAll()
			return nil, nil, err
		}
		l.assets = append(l.assets, asset{source: source, provider: provider})
	}

	if len(l.assets) != len(cfg) {
		l.StopAll()
		return nil, nil, errs.NewConfigInvalid("built %d assets for %d config entries", len(l.assets), len(cfg))
	}

	return l, dumps, nil
}

func buildSource(entry config.AssetConfig, client *tang.Client, stdinData []byte) (Source, error) {
	fromStdin := entry.IMethod == config.IngressStdin && stdinData != nil

	switch entry.LockingMethod {
	case config.LockingClevis:
		if fromStdin {
			return NewClevisFileFromBytes(stdinData, client, true)
		}
		return NewClevisFile(entry.IMethod, entry.In, client, true)
	default:
		if fromStdin {
			return NewPlainFileFromBytes(stdinData, true), nil
		}
		return NewPlainFile(entry.IMethod, entry.In, true), nil
	}
}

func buildProvider(entry config.AssetConfig, source Source, sink *ui.Sink) (Provider, error) {
	switch entry.EMethod {
	case config.EgressStdout:
		return NewStdoutProvider(source, os.Stdout), nil
	case config.EgressFile:
		return NewFileProvider(source, entry.Out, entry.OutCount, sink), nil
	case config.EgressPipe:
		return NewFifoProvider(source, entry.Out, true, sink), nil
	default:
		return nil, errs.NewConfigInvalid("unknown eMethod %q", entry.EMethod)
	}
}

// StartAll starts every provider in the list. Dump-mode lists have no
// providers and StartAll is a no-op for them.
func (l *List) StartAll() error {
	for _, a := range l.assets {
		if a.provider == nil {
			continue
		}
		if err := a.provider.Start(); err != nil {
			return err
		}
	}
	return nil
}

// WaitAll blocks, polling every provider every 100ms, until all have
// completed, and returns the first failure observed across all of them
// (per-asset failures are reported individually via sink before this
// returns; the caller uses the return value only to decide the exit
// code).
func (l *List) WaitAll() error {
	remaining := make([]asset, 0, len(l.assets))
	for _, a := range l.assets {
		if a.provider != nil {
			remaining = append(remaining, a)
		}
	}

	var firstErr error
	for len(remaining) > 0 {
		next := remaining[:0]
		for _, a := range remaining {
			if a.provider.Wait(pollInterval) {
				if err := a.provider.Stop(); err != nil {
					l.ui.UserMsg("asset failed: %v", err)
					if firstErr == nil {
						firstErr = err
					}
				}
				continue
			}
			next = append(next, a)
		}
		remaining = next
	}
	return firstErr
}

// StopAll performs cooperative shutdown of every asset currently tracked,
// in construction order, tolerating assets that were never started (dump
// mode, or a rollback after a partial construction failure).
func (l *List) StopAll() {
	for _, a := range l.assets {
		if a.provider != nil {
			a.provider.Stop()
		}
		a.source.Cancel()
		a.source.Destroy()
	}
}
