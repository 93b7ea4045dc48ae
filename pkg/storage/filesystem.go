package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// LocalStorage persists document uploads on disk under a base directory.
// The rest of the system only ever sees opaque references; bytes never
// cross the service boundary.
type LocalStorage struct {
	baseDir      string
	maxSizeBytes int64
	allowedMIMEs map[string]struct{}
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string, maxSizeBytes int64, allowedMIMEs []string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	mimes := make(map[string]struct{}, len(allowedMIMEs))
	for _, m := range allowedMIMEs {
		mimes[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &LocalStorage{baseDir: baseDir, maxSizeBytes: maxSizeBytes, allowedMIMEs: mimes}, nil
}

// Save streams an upload to disk and returns its opaque reference.
// Size and MIME limits are enforced here, not by callers.
func (s *LocalStorage) Save(r io.Reader, originalName, contentType string, size int64) (string, error) {
	if s.maxSizeBytes > 0 && size > s.maxSizeBytes {
		return "", fmt.Errorf("file exceeds maximum size of %d bytes", s.maxSizeBytes)
	}
	if len(s.allowedMIMEs) > 0 {
		mime := strings.ToLower(strings.TrimSpace(contentType))
		if idx := strings.Index(mime, ";"); idx >= 0 {
			mime = strings.TrimSpace(mime[:idx])
		}
		if _, ok := s.allowedMIMEs[mime]; !ok {
			return "", fmt.Errorf("content type %q not allowed", contentType)
		}
	}

	ext := filepath.Ext(originalName)
	reference := filepath.Join("documents", uuid.NewString()+strings.ToLower(ext))
	path := s.resolve(reference)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	limit := size
	if s.maxSizeBytes > 0 {
		limit = s.maxSizeBytes
	}
	written, err := io.Copy(file, io.LimitReader(r, limit+1))
	if err != nil {
		os.Remove(path) //nolint:errcheck
		return "", fmt.Errorf("write upload stream: %w", err)
	}
	if written > limit {
		os.Remove(path) //nolint:errcheck
		return "", fmt.Errorf("stream exceeds limit of %d bytes", limit)
	}
	return reference, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(reference string) (*os.File, error) {
	file, err := os.Open(s.resolve(reference))
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file and reports whether it existed.
func (s *LocalStorage) Delete(reference string) (bool, error) {
	err := os.Remove(s.resolve(reference))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("delete upload file: %w", err)
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *LocalStorage) Path(reference string) string {
	return s.resolve(reference)
}

func (s *LocalStorage) resolve(reference string) string {
	if filepath.IsAbs(reference) {
		return reference
	}
	return filepath.Join(s.baseDir, reference)
}
