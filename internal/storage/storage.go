// Package storage persists rendered painting images and serves their URLs.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/CodeWithJuber/ai-painting-generator/internal/config"
)

// ImageStore is where rendered paintings land. S3-compatible object storage
// in production, local disk in development.
type ImageStore interface {
	// Save stores a file at the given path
	Save(path string, file io.Reader) error

	// Delete removes a file at the given path
	Delete(path string) error

	// URL returns the public URL for accessing the file
	URL(path string) string
}

// New selects the store from config: S3 when a bucket is configured,
// otherwise a local uploads directory.
func New(cfg *config.Config) (ImageStore, error) {
	if cfg.S3Bucket != "" {
		return NewS3Store(S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Endpoint:  cfg.S3Endpoint,
		})
	}
	return NewLocalStore("./data/uploads", cfg.AppURL)
}

// LocalStore writes images to a directory on disk and serves them under
// /uploads/. Development fallback, not for multi-node deployments.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *LocalStore) Save(path string, file io.Reader) error {
	full := filepath.Join(s.dir, filepath.FromSlash(path))

	err := os.MkdirAll(filepath.Dir(full), 0755)
	if err != nil {
		return err
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	_, err = io.Copy(f, file)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

func (s *LocalStore) Delete(path string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(path)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalStore) URL(path string) string {
	return s.baseURL + "/uploads/" + path
}

// Dir exposes the root directory so the router can mount a file server on it.
func (s *LocalStore) Dir() string {
	return s.dir
}
