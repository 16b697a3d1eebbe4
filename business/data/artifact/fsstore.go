package artifact

import (
	"context"
	"os"
	"path/filepath"
)

// FSStore stores artifacts under a local directory root, mirroring the
// object name layout. Used for local runs and tests.
type FSStore struct {
	Root string
}

// Upload implements Store. Writing truncates any prior artifact so a rerun
// fully supersedes it.
func (s *FSStore) Upload(_ context.Context, objectName string, data []byte, _ string) error {
	path := filepath.Join(s.Root, filepath.FromSlash(objectName))
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Download implements Store.
func (s *FSStore) Download(_ context.Context, objectName string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(objectName)))
}
