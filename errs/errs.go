// Package errs defines the error taxonomy used across latchy: a small set
// of typed errors, plus the wrapping helpers the rest of the code base uses
// to build them and to turn any error into the process exit code 1.
package errs

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// errExitCode is the default exit code when an error occurs.
const errExitCode = 1

// NewExitError returns an error that urfave/cli will handle by printing the
// error and exiting the process with the given code.
func NewExitError(err error, exitCode int) error {
	return cli.NewExitError(err, exitCode)
}

// Wrap returns a new error wrapped by the given error with the given
// message. If the given error implements the errors.Cause interface, the
// base error is used.
func Wrap(err error, format string, args ...interface{}) error {
	cause := errors.Cause(err)
	if cause == err {
		str := err.Error()
		if i := strings.LastIndexByte(str, ':'); i >= 0 {
			str = strings.TrimSpace(str[i:])
			return errors.Wrapf(fmt.Errorf(str), format, args...)
		}
	}
	return errors.Wrapf(cause, format, args...)
}

// ToError transforms the given error into a urfave/cli exit error carrying
// the default exit code.
func ToError(err error) error {
	if err == nil {
		return nil
	}
	return cli.NewExitError(prependErrorMsg(err), errExitCode)
}

func prependErrorMsg(err error) string {
	m := err.Error()
	if strings.HasPrefix(m, "Error:") {
		return m
	}
	return "Error: " + m
}

// FileError wraps an *os.PathError/*os.LinkError/*os.SyscallError into a
// message naming the failing syscall, mirroring what the os package itself
// reports.
func FileError(err error, filename string) error {
	switch e := errors.Cause(err).(type) {
	case *os.PathError:
		return errors.Errorf("%s %s failed: %v", e.Op, e.Path, e.Err)
	case *os.LinkError:
		return errors.Errorf("%s %s %s failed: %v", e.Op, e.Old, e.New, e.Err)
	case *os.SyscallError:
		return errors.Errorf("%s failed: %v", e.Syscall, e.Err)
	default:
		return Wrap(err, "unexpected error on %s", filename)
	}
}

// The domain taxonomy. Each is a distinct type so callers can recover it
// with errors.As rather than by string matching. The top level command
// reports every one of them the same way, through ToError, with exit
// code 1.

// ConfigInvalid reports a malformed configuration: unknown method, missing
// required field, or a count mismatch between configured and running
// assets.
type ConfigInvalid struct {
	Reason string
}

func (e *ConfigInvalid) Error() string {
	return "configuration is invalid: " + e.Reason
}

// NewConfigInvalid builds a *ConfigInvalid.
func NewConfigInvalid(format string, args ...interface{}) error {
	return &ConfigInvalid{Reason: fmt.Sprintf(format, args...)}
}

// SourceUnavailable reports that an asset source could not produce its
// plaintext: missing/unreadable input, JWE parse failure, Tang give-up, or
// a cryptographic failure during unsealing.
type SourceUnavailable struct {
	Reason string
}

func (e *SourceUnavailable) Error() string {
	return "source data is unavailable: " + e.Reason
}

// NewSourceUnavailable builds a *SourceUnavailable.
func NewSourceUnavailable(format string, args ...interface{}) error {
	return &SourceUnavailable{Reason: fmt.Sprintf(format, args...)}
}

// PermanentTangFailure reports a Tang response that will never succeed:
// HTTP 406/418, or no usable CA bundle was found before any request was
// attempted.
type PermanentTangFailure struct {
	URL    string
	Reason string
}

func (e *PermanentTangFailure) Error() string {
	if e.URL == "" {
		return "permanent tang failure: " + e.Reason
	}
	return fmt.Sprintf("permanent tang failure for %s: %s", e.URL, e.Reason)
}

// NewPermanentTangFailure builds a *PermanentTangFailure.
func NewPermanentTangFailure(url, format string, args ...interface{}) error {
	return &PermanentTangFailure{URL: url, Reason: fmt.Sprintf(format, args...)}
}

// TransientTangFailure reports a Tang interaction that may succeed on
// retry: any non-200/406/418 HTTP status, or a transport error.
type TransientTangFailure struct {
	URL    string
	Reason string
}

func (e *TransientTangFailure) Error() string {
	return fmt.Sprintf("transient tang failure for %s: %s", e.URL, e.Reason)
}

// NewTransientTangFailure builds a *TransientTangFailure.
func NewTransientTangFailure(url, format string, args ...interface{}) error {
	return &TransientTangFailure{URL: url, Reason: fmt.Sprintf(format, args...)}
}

// OpenError reports a failure to create or open an egress sink (regular
// file or FIFO).
type OpenError struct {
	Path   string
	Reason string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open %s: %s", e.Path, e.Reason)
}

// NewOpenError builds an *OpenError.
func NewOpenError(path, format string, args ...interface{}) error {
	return &OpenError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// BrokenPipe reports that a FIFO reader closed its end before the full
// buffer was written.
type BrokenPipe struct {
	Path string
}

func (e *BrokenPipe) Error() string {
	return "other end closed the pipe for " + e.Path
}

// NewBrokenPipe builds a *BrokenPipe.
func NewBrokenPipe(path string) error {
	return &BrokenPipe{Path: path}
}

// GenericIoError reports an unexpected filesystem or notification error
// that does not fit one of the more specific categories above.
type GenericIoError struct {
	Path   string
	Reason string
}

func (e *GenericIoError) Error() string {
	return fmt.Sprintf("generic I/O error for %s: %s", e.Path, e.Reason)
}

// NewGenericIoError builds a *GenericIoError.
func NewGenericIoError(path, format string, args ...interface{}) error {
	return &GenericIoError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

// Unimplemented reports a recognized but not-yet-supported configuration
// path, e.g. environment-variable ingestion.
type Unimplemented struct {
	Feature string
}

func (e *Unimplemented) Error() string {
	return e.Feature + " is not implemented"
}

// NewUnimplemented builds an *Unimplemented.
func NewUnimplemented(feature string) error {
	return &Unimplemented{Feature: feature}
}
