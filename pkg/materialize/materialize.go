// Package materialize writes git blob revisions to uniquely named temporary
// files so that path-based tools can read them, and guarantees their removal.
package materialize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
)

const filePerm = 0o600

// Sentinel errors.
var (
	// ErrBlobTooLarge is returned when a blob exceeds the configured size limit.
	ErrBlobTooLarge = errors.New("blob exceeds size limit")
	// ErrInvalidSize is returned by ParseSize for malformed size strings.
	ErrInvalidSize = errors.New("invalid size")
)

// BlobSource yields the full content of a blob revision.
type BlobSource interface {
	BlobContents(ctx context.Context, hash gitlib.Hash) ([]byte, error)
}

// blobSizer is implemented by sources that report a blob's size without
// loading it.
type blobSizer interface {
	BlobSize(ctx context.Context, hash gitlib.Hash) (int64, error)
}

// Materializer writes blobs into a work directory. Names are 32 hex characters
// of a random v4 UUID followed by the tracked extension, so concurrent
// materializations never collide.
type Materializer struct {
	fs      afero.Fs
	dir     string
	ext     string
	source  BlobSource
	maxSize uint64
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithFs replaces the OS filesystem.
func WithFs(fs afero.Fs) Option {
	return func(m *Materializer) {
		m.fs = fs
	}
}

// WithMaxSize rejects blobs larger than limit bytes. Zero disables the check.
func WithMaxSize(limit uint64) Option {
	return func(m *Materializer) {
		m.maxSize = limit
	}
}

// New creates a Materializer writing into dir with extension ext. An empty dir
// means the process working directory.
func New(source BlobSource, dir, ext string, opts ...Option) (*Materializer, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve work dir: %w", err)
		}

		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve work dir %s: %w", dir, err)
	}

	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	m := &Materializer{
		fs:     afero.NewOsFs(),
		dir:    abs,
		ext:    ext,
		source: source,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// Dir returns the absolute work directory.
func (m *Materializer) Dir() string {
	return m.dir
}

// Fs returns the filesystem files are written to.
func (m *Materializer) Fs() afero.Fs {
	return m.fs
}

// Materialize writes the blob to a fresh file and returns its absolute path.
// On error nothing is left behind.
func (m *Materializer) Materialize(ctx context.Context, hash gitlib.Hash) (string, error) {
	if sizer, ok := m.source.(blobSizer); ok && m.maxSize > 0 {
		size, sizeErr := sizer.BlobSize(ctx, hash)
		if sizeErr != nil {
			return "", fmt.Errorf("materialize %s: %w", hash.Short(), sizeErr)
		}

		limitErr := m.checkSize(hash, uint64(size))
		if limitErr != nil {
			return "", limitErr
		}
	}

	data, err := m.source.BlobContents(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("materialize %s: %w", hash.Short(), err)
	}

	limitErr := m.checkSize(hash, uint64(len(data)))
	if limitErr != nil {
		return "", limitErr
	}

	path := filepath.Join(m.dir, strings.ReplaceAll(uuid.NewString(), "-", "")+m.ext)

	writeErr := afero.WriteFile(m.fs, path, data, filePerm)
	if writeErr != nil {
		releaseErr := m.Release(path)

		return "", errors.Join(fmt.Errorf("materialize %s: %w", hash.Short(), writeErr), releaseErr)
	}

	return path, nil
}

func (m *Materializer) checkSize(hash gitlib.Hash, size uint64) error {
	if m.maxSize == 0 || size <= m.maxSize {
		return nil
	}

	return fmt.Errorf("%w: %s is %s, limit %s", ErrBlobTooLarge, hash.Short(),
		humanize.Bytes(size), humanize.Bytes(m.maxSize))
}

// Release removes a materialized file. Removing a missing file is not an error.
func (m *Materializer) Release(path string) error {
	err := m.fs.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("release %s: %w", path, err)
	}

	return nil
}

// With materializes hash, runs fn with the path, and releases the file on
// every exit path, including a panic unwinding through fn.
func (m *Materializer) With(ctx context.Context, hash gitlib.Hash, fn func(path string) error) (err error) {
	path, err := m.Materialize(ctx, hash)
	if err != nil {
		return err
	}

	defer func() {
		releaseErr := m.Release(path)
		if err == nil {
			err = releaseErr
		}
	}()

	return fn(path)
}

// WithPair materializes two blobs and releases both when fn returns.
func (m *Materializer) WithPair(ctx context.Context, oldHash, newHash gitlib.Hash, fn func(oldPath, newPath string) error) error {
	return m.With(ctx, oldHash, func(oldPath string) error {
		return m.With(ctx, newHash, func(newPath string) error {
			return fn(oldPath, newPath)
		})
	})
}

// ParseSize parses a human readable size such as "4MB". Empty means no limit.
func ParseSize(s string) (uint64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}

	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidSize, s, err)
	}

	return n, nil
}
