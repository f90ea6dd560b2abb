package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jasonroberts79/cyberpunk-looter/internal/platform/logger"
)

// BlobStore is the small persistence surface the ledger needs. Read returns
// (nil, nil) for a missing object so first-run is not an error.
type BlobStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	Write(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Bucket   string
	LocalDir string // non-empty selects the local filesystem mode
}

func ConfigFromEnv() Config {
	return Config{
		Bucket:   strings.TrimSpace(os.Getenv("GCS_BUCKET_NAME")),
		LocalDir: strings.TrimSpace(os.Getenv("OBJECT_STORAGE_LOCAL_DIR")),
	}
}

// NewFromConfig picks the backing implementation: a GCS bucket in
// production, a plain directory for local runs and tests.
func NewFromConfig(ctx context.Context, cfg Config, log *logger.Logger) (BlobStore, error) {
	if cfg.LocalDir != "" {
		log.Info("Object storage in local mode", "dir", cfg.LocalDir)
		return NewLocalStore(cfg.LocalDir)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs: missing GCS_BUCKET_NAME (or OBJECT_STORAGE_LOCAL_DIR)")
	}
	return NewBucketStore(ctx, cfg.Bucket, log)
}

type bucketStore struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func NewBucketStore(ctx context.Context, bucket string, log *logger.Logger, opts ...option.ClientOption) (BlobStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	log.Info("Object storage initialized", "bucket", bucket)
	return &bucketStore{
		log:    log.With("service", "BlobStore"),
		client: client,
		bucket: bucket,
	}, nil
}

func (s *bucketStore) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("gcs: read %s: %w", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs: read %s: %w", key, err)
	}
	return data, nil
}

func (s *bucketStore) Write(ctx context.Context, key string, data []byte) error {
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs: write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs: write %s: %w", key, err)
	}
	return nil
}

func (s *bucketStore) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs: delete %s: %w", key, err)
	}
	return nil
}

type localStore struct {
	dir string
}

// NewLocalStore stores objects as files under dir. Keys may contain slashes.
func NewLocalStore(dir string) (BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("gcs: local dir: %w", err)
	}
	return &localStore{dir: dir}, nil
}

func (s *localStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

func (s *localStore) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (s *localStore) Write(_ context.Context, key string, data []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (s *localStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
