package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type Local struct {
	basePath string
	baseURL  string
}

func NewLocal(basePath, baseURL string) (*Local, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &Local{basePath: basePath, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *Local) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}

	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(dst, body); err != nil {
		_ = dst.Close()
		_ = os.Remove(fullPath)
		return "", fmt.Errorf("write file: %w", err)
	}

	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close file: %w", err)
	}

	return key, nil
}

// Delete ignores objects that are already gone.
func (s *Local) Delete(_ context.Context, ref string) error {
	if err := validKey(ref); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(ref)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *Local) URL(ref string) string {
	return s.baseURL + "/" + ref
}

// Root is the directory objects are written under.
func (s *Local) Root() string {
	return s.basePath
}
