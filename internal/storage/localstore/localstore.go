// Package localstore writes result images onto the local filesystem
package localstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// FileStore writes artifacts at caller-chosen paths, replacing whatever was there.
type FileStore struct {
	perm os.FileMode
}

func New() *FileStore {
	return &FileStore{perm: 0o644}
}

// Save writes data to path verbatim.
func (s *FileStore) Save(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(path) == "" {
		return errors.New("localstore: path is required")
	}
	if err := os.WriteFile(path, data, s.perm); err != nil {
		return fmt.Errorf("localstore: write file: %w", err)
	}
	return nil
}
