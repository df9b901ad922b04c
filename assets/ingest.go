package assets

import (
	"io"
	"os"

	"github.com/nearedge/latchy/config"
	"github.com/nearedge/latchy/errs"
)

// errsCancelled is the error a source reports when it was cancelled
// before its read began.
func errsCancelled() error {
	return errs.NewSourceUnavailable("cancelled before read")
}

// readIngress reads the full contents of the configured ingress: standard
// input, a regular file, or a FIFO path (opened for reading, which blocks
// until a writer connects on the other end — the same blocking semantics
// a shell pipeline gets from `cat fifo`).
func readIngress(iMethod, path string) ([]byte, error) {
	switch iMethod {
	case config.IngressStdin:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, errs.NewSourceUnavailable("error reading stdin: %v", err)
		}
		return data, nil
	case config.IngressFile, config.IngressPipe:
		file, err := os.Open(path)
		if err != nil {
			return nil, errs.NewSourceUnavailable("%v", errs.FileError(err, path))
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return nil, errs.NewSourceUnavailable("%v", errs.FileError(err, path))
		}
		return data, nil
	default:
		return nil, errs.NewUnimplemented(iMethod)
	}
}
