// Package blobstore stores user-uploaded objects (profile avatars). It defines
// the BlobStore interface, a MinIO-backed implementation, and a thread-safe
// in-memory implementation used in development and tests.
package blobstore

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// MaxAvatarSize is the largest avatar accepted (2 MB).
const MaxAvatarSize = 2 * 1024 * 1024

// AllowedImageTypes lists the avatar MIME types.
var AllowedImageTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Object is an upload request.
type Object struct {
	Owner       string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Stored describes a persisted object.
type Stored struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// BlobStore defines the contract for object storage backends.
type BlobStore interface {
	Put(ctx context.Context, obj Object) (*Stored, error)
	Delete(ctx context.Context, key string) error
}

// ValidateImage checks an avatar's declared content type and size.
func ValidateImage(contentType string, size int64) error {
	ct := normalizeContentType(contentType)
	if _, ok := AllowedImageTypes[ct]; !ok {
		return fmt.Errorf("%w: %q", ErrInvalidContentType, contentType)
	}
	if size > MaxAvatarSize {
		return ErrFileTooLarge
	}
	return nil
}

func normalizeContentType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

var nonSafe = regexp.MustCompile(`[^a-z0-9\-_.]+`)

func sanitizeFileName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, " ", "-")
	name = nonSafe.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-_.")
	if name == "" {
		name = "file"
	}
	return name
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ObjectKey builds "avatars/<owner>/<name>-<rand><ext>". The extension is
// taken from the content type so a misleading file name cannot change it.
func ObjectKey(owner, fileName, contentType string) string {
	base := strings.TrimSuffix(path.Base(fileName), path.Ext(fileName))
	ext, ok := AllowedImageTypes[normalizeContentType(contentType)]
	if !ok {
		ext = ".bin"
	}
	return path.Join("avatars", sanitizeFileName(owner), fmt.Sprintf("%s-%s%s", sanitizeFileName(base), randomHex(4), ext))
}

// readLimited drains r, failing once more than max bytes are seen.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	buf := &bytes.Buffer{}
	n, err := io.Copy(buf, io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if n > max {
		return nil, ErrFileTooLarge
	}
	return buf.Bytes(), nil
}

func prepare(obj Object) ([]byte, error) {
	if obj.FileName == "" {
		return nil, ErrMissingFileName
	}
	if err := ValidateImage(obj.ContentType, obj.Size); err != nil {
		return nil, err
	}
	return readLimited(obj.Body, MaxAvatarSize)
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedBlob struct {
	meta    Stored
	content []byte
}

// InMemoryBlobStore is a thread-safe BlobStore for development and tests.
type InMemoryBlobStore struct {
	mu      sync.RWMutex
	baseURL string
	blobs   map[string]*storedBlob
}

// NewInMemoryBlobStore returns a store whose URLs are rooted at baseURL.
func NewInMemoryBlobStore(baseURL string) *InMemoryBlobStore {
	return &InMemoryBlobStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		blobs:   make(map[string]*storedBlob),
	}
}

func (s *InMemoryBlobStore) Put(_ context.Context, obj Object) (*Stored, error) {
	content, err := prepare(obj)
	if err != nil {
		return nil, err
	}
	key := ObjectKey(obj.Owner, obj.FileName, obj.ContentType)
	meta := Stored{
		Key:         key,
		URL:         s.baseURL + "/" + key,
		ContentType: normalizeContentType(obj.ContentType),
		Size:        int64(len(content)),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.blobs[key] = &storedBlob{meta: meta, content: content}
	s.mu.Unlock()

	out := meta
	return &out, nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, key)
	return nil
}

// Get returns a copy of the stored bytes.
func (s *InMemoryBlobStore) Get(key string) ([]byte, *Stored, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	meta := b.meta
	return append([]byte(nil), b.content...), &meta, nil
}

// Len reports the number of stored objects.
func (s *InMemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
