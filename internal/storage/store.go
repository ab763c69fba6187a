package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	gcs "cloud.google.com/go/storage"
)

// uploadTimeout bounds a single object upload.
const uploadTimeout = 2 * time.Minute

// Object is an opened source together with the metadata recorded in the
// provenance manifest.
type Object struct {
	io.ReadCloser
	URI     string
	Size    int64
	Updated time.Time
}

// Service opens run inputs and publishes run outputs. Paths are either local
// file paths or gs:// URIs.
type Service interface {
	// Open returns a reader over the source at uri.
	Open(ctx context.Context, uri string) (*Object, error)

	// UploadFile uploads a local file to a bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error
}

// Store is the Service backed by the local filesystem and Cloud Storage.
// The Cloud Storage client is created on first use so purely local runs
// need no credentials.
type Store struct {
	mu     sync.Mutex
	client *gcs.Client
}

// NewStore creates a Store. client may be nil.
func NewStore(client *gcs.Client) *Store {
	return &Store{client: client}
}

// Close releases the Cloud Storage client if one was created.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

func (s *Store) gcsClient(ctx context.Context) (*gcs.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	// Application Default Credentials (gcloud auth application-default login).
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	s.client = client
	return client, nil
}

// Open implements Service.
func (s *Store) Open(ctx context.Context, uri string) (*Object, error) {
	if !IsGCSURI(uri) {
		return openLocal(uri)
	}

	bucketName, objectPath, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}
	client, err := s.gcsClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	rc, err := client.Bucket(bucketName).Object(objectPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("Open: reading object %s/%s: %w", bucketName, objectPath, err)
	}
	return &Object{
		ReadCloser: rc,
		URI:        uri,
		Size:       rc.Attrs.Size,
		Updated:    rc.Attrs.LastModified,
	}, nil
}

func openLocal(path string) (*Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Open: open file %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("Open: stat file %q: %w", path, err)
	}
	return &Object{ReadCloser: f, URI: path, Size: info.Size(), Updated: info.ModTime()}, nil
}

// UploadFile implements Service.
func (s *Store) UploadFile(ctx context.Context, bucketName, objectName, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	client, err := s.gcsClient(ctx)
	if err != nil {
		return fmt.Errorf("UploadFile: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("UploadFile: copy file to GCS writer: %w", err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize upload: %w", err)
	}
	return nil
}

// IsNotExist reports whether err means the source does not exist, locally
// or in Cloud Storage.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, gcs.ErrObjectNotExist)
}
