// Package ui is latchy's diagnostics sink: three severity tiers written
// directly to os.Stderr with fmt, the same way the teacher writes its own
// prompts and errors, gated by the -d/--debug and -t/--trace flags so a
// default run stays silent except for user-facing messages.
package ui

import (
	"fmt"
	"io"
	"os"
)

// Sink writes USERMSG/INFO/DEBUG diagnostics to an underlying stream,
// gating INFO and DEBUG behind the trace/debug flags. A Sink is always
// safe to use with a nil underlying writer defaulting to os.Stderr.
type Sink struct {
	out   io.Writer
	trace bool
	debug bool
}

// New returns a Sink writing to os.Stderr.
func New(trace, debug bool) *Sink {
	return &Sink{out: os.Stderr, trace: trace, debug: debug}
}

// NewWithWriter returns a Sink writing to an arbitrary stream; tests use
// this to capture diagnostic output without touching the real stderr.
func NewWithWriter(out io.Writer, trace, debug bool) *Sink {
	return &Sink{out: out, trace: trace, debug: debug}
}

// UserMsg always prints: the tier for messages the operator of latchy is
// always expected to see (errors, terminal state transitions).
func (s *Sink) UserMsg(format string, args ...interface{}) {
	s.println(format, args...)
}

// Info prints only when --trace is set: progress and lifecycle
// information that is noisy but not secret.
func (s *Sink) Info(format string, args ...interface{}) {
	if s.trace {
		s.println(format, args...)
	}
}

// Debug prints only when --debug is set: internal state, including
// fingerprint tiers and protocol step tracing, but never plaintext or
// private key material.
func (s *Sink) Debug(format string, args ...interface{}) {
	if s.debug {
		s.println(format, args...)
	}
}

func (s *Sink) println(format string, args ...interface{}) {
	out := s.out
	if out == nil {
		out = os.Stderr
	}
	fmt.Fprintln(out, fmt.Sprintf(format, args...))
}
