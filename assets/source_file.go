package assets

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// PlainFile reads bytes from a regular file, a FIFO path, or standard
// input, and exposes them as a SecretBuffer with no decryption step. It
// trims trailing newlines the way a shell pipeline would, so a plaintext
// secret piped in with an editor-added trailing newline round-trips
// cleanly through FILE/PIPE egress.
type PlainFile struct {
	iMethod string
	path    string

	preset    []byte
	hasPreset bool

	once      sync.Once
	done      chan struct{}
	buf       *SecretBuffer
	err       error
	cancelled atomic.Bool
}

// NewPlainFile constructs a PlainFile source reading from path under
// iMethod (STDIN/IFILE/IPIPE). If autostart is true the read begins
// immediately in the background, matching ClevisFile's construction
// contract.
func NewPlainFile(iMethod, path string, autostart bool) *PlainFile {
	f := &PlainFile{iMethod: iMethod, path: path, done: make(chan struct{})}
	if autostart {
		f.Start()
	}
	return f
}

// NewPlainFileFromBytes builds a PlainFile directly from already-read
// bytes, for the implicit-mode case where the CLI has already drained
// stdin to sniff its first byte.
func NewPlainFileFromBytes(data []byte, autostart bool) *PlainFile {
	f := &PlainFile{hasPreset: true, preset: data, done: make(chan struct{})}
	if autostart {
		f.Start()
	}
	return f
}

// Start begins the background read if it has not already started.
func (f *PlainFile) Start() {
	f.once.Do(func() {
		go f.run()
	})
}

func (f *PlainFile) run() {
	defer close(f.done)

	if f.cancelled.Load() {
		f.err = errsCancelled()
		return
	}

	var data []byte
	if f.hasPreset {
		data = f.preset
	} else {
		d, err := readIngress(f.iMethod, f.path)
		if err != nil {
			f.err = err
			return
		}
		data = d
	}
	for len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}
	f.buf = NewSecretBuffer(data)
}

func (f *PlainFile) IsReady() (bool, error) {
	select {
	case <-f.done:
		err := f.err
		f.err = nil
		return true, err
	default:
		return false, nil
	}
}

func (f *PlainFile) GetAsset() (*SecretBuffer, error) {
	select {
	case <-f.done:
		err := f.err
		f.err = nil
		return f.buf, err
	default:
		return nil, nil
	}
}

func (f *PlainFile) Destroy() {
	if f.buf != nil {
		f.buf.Destroy()
	}
}

func (f *PlainFile) Cancel() {
	f.cancelled.Store(true)
}

func (f *PlainFile) DumpInfo() string {
	return fmt.Sprintf("PlainFile(iMethod=%s path=%q)", f.iMethod, f.path)
}
