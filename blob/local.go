// blob/local.go
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"
)

// LocalStore keeps blobs in a directory on disk, served back under /uploads.
type LocalStore struct {
	dir      string
	maxBytes int64
	now      func() time.Time
}

func NewLocalStore(dir string, maxBytes int64) (*LocalStore, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, maxBytes: maxBytes, now: time.Now}, nil
}

func (s *LocalStore) Put(_ context.Context, u Upload) (Object, error) {
	contentType, err := Check(u, s.maxBytes)
	if err != nil {
		return Object{}, err
	}

	src, err := u.Open()
	if err != nil {
		return Object{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	filename := NewFilename(contentType, s.now())
	dest := filepath.Join(s.dir, filename)
	dst, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Object{}, fmt.Errorf("create blob: %w", err)
	}

	// the declared size is client-supplied; cap what is actually written
	n, err := io.Copy(dst, io.LimitReader(src, s.maxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxBytes {
		err = fmt.Errorf("%w: max %d", ErrTooLarge, s.maxBytes)
	}
	if err != nil {
		os.Remove(dest)
		return Object{}, err
	}

	return Object{
		Filename:    filename,
		Path:        path.Join("uploads", filename),
		ContentType: contentType,
		Size:        n,
	}, nil
}

func (s *LocalStore) Get(_ context.Context, filename string) (*Reader, error) {
	if !ValidName(filename) {
		return nil, ErrInvalidName
	}
	f, err := os.Open(filepath.Join(s.dir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return &Reader{ReadCloser: f, ContentType: contentTypeFor(filename), Size: info.Size()}, nil
}

func (s *LocalStore) Delete(_ context.Context, filename string) error {
	if !ValidName(filename) {
		return ErrInvalidName
	}
	err := os.Remove(filepath.Join(s.dir, filename))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	return err
}
