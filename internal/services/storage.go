package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/dubforge-backend/internal/platform/envutil"
	"github.com/yungbote/dubforge-backend/internal/platform/logger"
)

// Storage is the blob store behind uploads and results. Keys are
// slash-separated paths like "uploads/<id>.mp4" or "results/<id>.srt".
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader) error
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// FetchToFile materializes the object at a local path so subprocess
	// tools can read it.
	FetchToFile(ctx context.Context, key, path string) error
	SaveFromFile(ctx context.Context, key, path string) error
}

// NewStorage selects the backend from STORAGE_BACKEND: "local" (default)
// or "gcs".
func NewStorage(log *logger.Logger) (Storage, error) {
	backend := envutil.GetEnv("STORAGE_BACKEND", "local", log)
	switch backend {
	case "local":
		root := envutil.GetEnv("STORAGE_ROOT", "./data", log)
		return NewLocalStorage(log, root)
	case "gcs":
		return NewGCSStorage(log)
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q", backend)
	}
}

type localStorage struct {
	log  *logger.Logger
	root string
}

func NewLocalStorage(log *logger.Logger, root string) (Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &localStorage{
		log:  log.With("service", "LocalStorage"),
		root: root,
	}, nil
}

func (ls *localStorage) path(key string) (string, error) {
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(ls.root, clean), nil
}

func (ls *localStorage) Save(ctx context.Context, key string, r io.Reader) error {
	p, err := ls.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("mkdir for %q: %w", key, err)
	}
	tmp := p + ".partial"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %q: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, p)
}

func (ls *localStorage) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := ls.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", key, err)
	}
	return f, nil
}

func (ls *localStorage) Delete(ctx context.Context, key string) error {
	p, err := ls.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

func (ls *localStorage) FetchToFile(ctx context.Context, key, path string) error {
	return copyToFile(ctx, ls, key, path)
}

func (ls *localStorage) SaveFromFile(ctx context.Context, key, path string) error {
	return saveFromFile(ctx, ls, key, path)
}

type gcsStorage struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
}

func NewGCSStorage(log *logger.Logger) (Storage, error) {
	serviceLog := log.With("service", "GCSStorage")
	bucket := os.Getenv("GCS_BUCKET_NAME")
	if bucket == "" {
		return nil, fmt.Errorf("missing env var GCS_BUCKET_NAME")
	}
	saPath := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON")

	ctx := context.Background()
	var (
		client *storage.Client
		err    error
	)
	if saPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(saPath), option.WithScopes(storage.ScopeReadWrite))
	} else {
		client, err = storage.NewClient(ctx, option.WithScopes(storage.ScopeReadWrite))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &gcsStorage{log: serviceLog, client: client, bucket: bucket}, nil
}

func (gs *gcsStorage) Save(ctx context.Context, key string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()
	w := gs.client.Bucket(gs.bucket).Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write %q to GCS: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer for %q: %w", key, err)
	}
	return nil
}

func (gs *gcsStorage) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := gs.client.Bucket(gs.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object %q: %w", key, err)
	}
	return r, nil
}

func (gs *gcsStorage) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := gs.client.Bucket(gs.bucket).Object(key).Delete(ctx); err != nil && err != storage.ErrObjectNotExist {
		return fmt.Errorf("failed to delete GCS object %q: %w", key, err)
	}
	return nil
}

func (gs *gcsStorage) FetchToFile(ctx context.Context, key, path string) error {
	return copyToFile(ctx, gs, key, path)
}

func (gs *gcsStorage) SaveFromFile(ctx context.Context, key, path string) error {
	return saveFromFile(ctx, gs, key, path)
}

func copyToFile(ctx context.Context, s Storage, key, path string) error {
	r, err := s.Fetch(ctx, key)
	if err != nil {
		return err
	}
	defer r.Close()
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	return f.Close()
}

func saveFromFile(ctx context.Context, s Storage, key, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()
	return s.Save(ctx, key, f)
}
