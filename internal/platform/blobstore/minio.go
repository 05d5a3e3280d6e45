package blobstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig carries the connection settings for MinIOBlobStore.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the externally reachable base for object URLs. When empty
	// the endpoint is used.
	PublicURL string
}

// MinIOBlobStore stores objects in a MinIO (S3-compatible) bucket.
type MinIOBlobStore struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// NewMinIOBlobStore connects and creates the bucket if it does not exist.
func NewMinIOBlobStore(ctx context.Context, cfg MinIOConfig) (*MinIOBlobStore, error) {
	c, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := c.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := c.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &MinIOBlobStore{
		client:     c,
		bucket:     cfg.Bucket,
		publicBase: publicBase(cfg),
	}, nil
}

func publicBase(cfg MinIOConfig) string {
	if cfg.PublicURL != "" {
		return strings.TrimRight(cfg.PublicURL, "/")
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + cfg.Endpoint
}

func (m *MinIOBlobStore) Put(ctx context.Context, obj Object) (*Stored, error) {
	content, err := prepare(obj)
	if err != nil {
		return nil, err
	}
	key := ObjectKey(obj.Owner, obj.FileName, obj.ContentType)
	ct := normalizeContentType(obj.ContentType)

	_, err = m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: ct})
	if err != nil {
		return nil, fmt.Errorf("put object %s: %w", key, err)
	}

	return &Stored{
		Key:         key,
		URL:         objectURL(m.publicBase, m.bucket, key),
		ContentType: ct,
		Size:        int64(len(content)),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func (m *MinIOBlobStore) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func objectURL(base, bucket, key string) string {
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + path.Join(bucket, key)
	}
	u.Path = path.Join(u.Path, bucket, key)
	return u.String()
}
