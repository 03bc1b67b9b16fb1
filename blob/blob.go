// blob/blob.go
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

// DefaultMaxBytes is the upload ceiling for proof files.
const DefaultMaxBytes int64 = 10 << 20

var (
	ErrNotFound    = errors.New("blob not found")
	ErrTooLarge    = errors.New("file exceeds size limit")
	ErrContentType = errors.New("file type not allowed")
	ErrInvalidName = errors.New("invalid file name")
)

// allowedContentTypes maps each accepted media type to the extension stored
// blobs get. Stored names never carry a client-chosen extension.
var allowedContentTypes = map[string]string{
	"image/jpeg":         "jpg",
	"image/png":          "png",
	"image/gif":          "gif",
	"image/webp":         "webp",
	"application/pdf":    "pdf",
	"text/plain":         "txt",
	"application/msword": "doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
}

var contentTypeByExt = func() map[string]string {
	m := make(map[string]string, len(allowedContentTypes))
	for ct, ext := range allowedContentTypes {
		m[ext] = ct
	}
	return m
}()

// Upload describes an incoming file before it is stored.
type Upload struct {
	OriginalName string
	ContentType  string
	Size         int64
	Open         func() (io.ReadCloser, error)
}

// Object is a stored blob. Path is what clients use to fetch it back.
type Object struct {
	Filename    string
	Path        string
	ContentType string
	Size        int64
}

// Reader streams a stored blob.
type Reader struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

type Store interface {
	Put(ctx context.Context, u Upload) (Object, error)
	Get(ctx context.Context, filename string) (*Reader, error)
	Delete(ctx context.Context, filename string) error
}

// Check enforces the size ceiling and the content-type allow-list and returns
// the normalized media type.
func Check(u Upload, maxBytes int64) (string, error) {
	if u.Size > maxBytes {
		return "", fmt.Errorf("%w: %d bytes, max %d", ErrTooLarge, u.Size, maxBytes)
	}
	mediaType, _, err := mime.ParseMediaType(u.ContentType)
	mediaType = strings.ToLower(mediaType)
	if _, ok := allowedContentTypes[mediaType]; err != nil || !ok {
		return "", fmt.Errorf("%w: %q", ErrContentType, u.ContentType)
	}
	return mediaType, nil
}

// NewFilename builds a server-side name: <unixMillis>-<random>.<ext>. The
// extension follows the checked media type, so a blob is always served back
// as the type it was accepted as.
func NewFilename(mediaType string, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	name := fmt.Sprintf("%d-%s", now.UnixMilli(), random)
	if ext, ok := allowedContentTypes[mediaType]; ok {
		name += "." + ext
	}
	return name
}

// OriginalNameMetadata reduces a client file name to an ASCII-safe form for
// object metadata, keeping the extension readable.
func OriginalNameMetadata(originalName string) string {
	base := filepath.Base(originalName)
	ext := slug.Make(strings.TrimPrefix(filepath.Ext(base), "."))
	stem := slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "file"
	}
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}

// ValidName reports whether filename is a single path element with no
// traversal sequences.
func ValidName(filename string) bool {
	if filename == "" || filename == "." {
		return false
	}
	return !strings.Contains(filename, "..") &&
		!strings.ContainsAny(filename, `/\`) &&
		!strings.ContainsRune(filename, 0)
}

// contentTypeFor maps a stored name back to its media type. Anything without
// one of our own extensions is served as an opaque download.
func contentTypeFor(filename string) string {
	if ct, ok := contentTypeByExt[strings.TrimPrefix(filepath.Ext(filename), ".")]; ok {
		return ct
	}
	return "application/octet-stream"
}
