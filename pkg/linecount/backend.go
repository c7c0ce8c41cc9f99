package linecount

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
)

// Backend names accepted by New.
const (
	BackendAuto   = "auto"
	BackendCloc   = "cloc"
	BackendNative = "native"
)

// Backends lists the accepted backend names.
func Backends() []string {
	return []string{BackendAuto, BackendCloc, BackendNative}
}

// Options selects and configures a classifier backend.
type Options struct {
	Backend     string
	Language    string
	ClocBinary  string
	DiffTimeout time.Duration
	// Fs is the filesystem the native backend reads from. Defaults to the OS.
	Fs afero.Fs
}

// New builds the classifier named by opts.Backend. The auto backend prefers
// cloc when it is on PATH and falls back to the native backend.
func New(opts Options) (Classifier, string, error) {
	switch opts.Backend {
	case BackendCloc:
		binary, err := LookupCloc(opts.ClocBinary)
		if err != nil {
			return nil, "", err
		}

		return NewCloc(binary, opts.Language, opts.DiffTimeout), BackendCloc, nil
	case BackendNative:
		native, err := NewNative(opts.Fs, opts.Language, opts.DiffTimeout)
		if err != nil {
			return nil, "", err
		}

		return native, BackendNative, nil
	case BackendAuto, "":
		binary, err := LookupCloc(opts.ClocBinary)
		if err == nil {
			return NewCloc(binary, opts.Language, opts.DiffTimeout), BackendCloc, nil
		}

		native, nativeErr := NewNative(opts.Fs, opts.Language, opts.DiffTimeout)
		if nativeErr != nil {
			return nil, "", fmt.Errorf("no usable backend: %w", nativeErr)
		}

		return native, BackendNative, nil
	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
}
