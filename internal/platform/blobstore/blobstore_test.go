package blobstore

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

func pngObject(owner string, size int) Object {
	return Object{
		Owner:       owner,
		FileName:    "My Photo.PNG",
		ContentType: "image/png",
		Size:        int64(size),
		Body:        bytes.NewReader(bytes.Repeat([]byte{0x89}, size)),
	}
}

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name string
		ct   string
		size int64
		want error
	}{
		{"png", "image/png", 1024, nil},
		{"jpeg with params", "image/jpeg; charset=binary", 10, nil},
		{"upper case", "IMAGE/WEBP", 10, nil},
		{"exactly max", "image/gif", MaxAvatarSize, nil},
		{"too large", "image/png", MaxAvatarSize + 1, ErrFileTooLarge},
		{"pdf", "application/pdf", 10, ErrInvalidContentType},
		{"empty", "", 10, ErrInvalidContentType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.ct, tt.size)
			if tt.want == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestObjectKey(t *testing.T) {
	key := ObjectKey("User-1", "../../My Photo.jpeg", "image/jpeg")
	if !strings.HasPrefix(key, "avatars/user-1/my-photo-") {
		t.Errorf("unexpected key prefix: %s", key)
	}
	if !strings.HasSuffix(key, ".jpg") {
		t.Errorf("expected .jpg extension from content type, got %s", key)
	}
	if strings.Contains(key, "..") {
		t.Errorf("key must not contain traversal: %s", key)
	}
	if ObjectKey("u", "a.png", "image/png") == ObjectKey("u", "a.png", "image/png") {
		t.Error("expected random suffix to differ between keys")
	}
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"Hello World": "hello-world",
		"__":          "file",
		"ümlaut.png":  "mlaut.png",
		"":            "file",
	}
	for in, want := range cases {
		if got := sanitizeFileName(in); got != want {
			t.Errorf("sanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInMemoryBlobStore_PutGetDelete(t *testing.T) {
	s := NewInMemoryBlobStore("http://localhost:8000/storage/")
	ctx := context.Background()

	stored, err := s.Put(ctx, pngObject("u1", 512))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if stored.Size != 512 {
		t.Errorf("expected size 512, got %d", stored.Size)
	}
	if stored.URL != "http://localhost:8000/storage/"+stored.Key {
		t.Errorf("unexpected url %s", stored.URL)
	}

	content, meta, err := s.Get(stored.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(content) != 512 || meta.ContentType != "image/png" {
		t.Errorf("unexpected content %d bytes / %s", len(content), meta.ContentType)
	}

	if err := s.Delete(ctx, stored.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, stored.Key); !errors.Is(err, ErrBlobNotFound) {
		t.Errorf("expected ErrBlobNotFound, got %v", err)
	}
}

func TestInMemoryBlobStore_Rejects(t *testing.T) {
	s := NewInMemoryBlobStore("")
	ctx := context.Background()

	obj := pngObject("u1", 10)
	obj.FileName = ""
	if _, err := s.Put(ctx, obj); !errors.Is(err, ErrMissingFileName) {
		t.Errorf("expected ErrMissingFileName, got %v", err)
	}

	obj = pngObject("u1", 10)
	obj.ContentType = "text/html"
	if _, err := s.Put(ctx, obj); !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}

	// Declared size lies; the body is still capped.
	obj = pngObject("u1", MaxAvatarSize+10)
	obj.Size = 100
	if _, err := s.Put(ctx, obj); !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("expected nothing stored, got %d", s.Len())
	}
}

func TestInMemoryBlobStore_Concurrent(t *testing.T) {
	s := NewInMemoryBlobStore("")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Put(context.Background(), pngObject("u", 16)); err != nil {
				t.Errorf("Put: %v", err)
			}
		}()
	}
	wg.Wait()
	if s.Len() != 20 {
		t.Errorf("expected 20 blobs, got %d", s.Len())
	}
}

func TestObjectURLAndPublicBase(t *testing.T) {
	if got := objectURL("https://cdn.example.com/files", "avatars", "avatars/u/a.png"); got != "https://cdn.example.com/files/avatars/avatars/u/a.png" {
		t.Errorf("unexpected url %s", got)
	}
	if got := publicBase(MinIOConfig{Endpoint: "minio:9000"}); got != "http://minio:9000" {
		t.Errorf("unexpected base %s", got)
	}
	if got := publicBase(MinIOConfig{Endpoint: "minio:9000", UseSSL: true}); got != "https://minio:9000" {
		t.Errorf("unexpected base %s", got)
	}
	if got := publicBase(MinIOConfig{Endpoint: "x", PublicURL: "https://files.vitalia.app/"}); got != "https://files.vitalia.app" {
		t.Errorf("unexpected base %s", got)
	}
}
