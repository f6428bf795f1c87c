package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalBackend saves snapshots as files under Dir, one file per id,
// written via a temp-file-then-rename so a reader never observes a
// partially written snapshot — Go's os.Rename is atomic on POSIX while a
// bare WriteFile is not.
type LocalBackend struct {
	Dir string
}

// NewLocalBackend returns a backend rooted at dir, creating it if
// necessary.
func NewLocalBackend(dir string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	return &LocalBackend{Dir: dir}, nil
}

func (b *LocalBackend) path(id string) string {
	return filepath.Join(b.Dir, id+".txt")
}

// Save writes text for id, atomically replacing any prior snapshot.
func (b *LocalBackend) Save(ctx context.Context, id string, text string) error {
	dst := b.path(id)
	tmp := dst + ".tmp"

	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename %s: %w", tmp, err)
	}
	return nil
}

// Load reads the snapshot for id, if one exists.
func (b *LocalBackend) Load(ctx context.Context, id string) (string, bool, error) {
	data, err := os.ReadFile(b.path(id))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: read %s: %w", b.path(id), err)
	}
	return string(data), true, nil
}
