package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store persists uploaded files and generated exports.
type Store interface {
	Save(category, originalName string, r io.Reader) (key string, err error)
	Open(key string) (io.ReadCloser, error)
	Delete(key string) error
}

// LocalStore keeps files on local disk under a base directory. Keys are
// relative paths of the form category/yyyymm/uuid.ext.
type LocalStore struct {
	baseDir string
}

func NewLocalStore(baseDir string) (*LocalStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{baseDir: baseDir}, nil
}

func (s *LocalStore) Save(category, originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	key := filepath.ToSlash(filepath.Join(
		sanitize(category),
		time.Now().Format("200601"),
		uuid.NewString()+ext,
	))

	full := filepath.Join(s.baseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(full)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(full)
		return "", err
	}
	return key, nil
}

func (s *LocalStore) Open(key string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.baseDir, filepath.FromSlash(key)))
}

func (s *LocalStore) Delete(key string) error {
	return os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(key)))
}

func sanitize(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return "misc"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, category)
}
