package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tedsta/ted/pkg/store"
)

// saveBuffer writes text to path, dispatching to an S3Backend for an
// s3://bucket/key destination and a direct atomic local write otherwise.
func saveBuffer(ctx context.Context, path, text string) error {
	if strings.HasPrefix(path, "s3://") {
		rest := strings.TrimPrefix(path, "s3://")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return fmt.Errorf("save: malformed s3 destination %q, want s3://bucket/key", path)
		}
		bucket, key := parts[0], parts[1]
		backend, err := store.NewS3Backend(ctx, bucket, "")
		if err != nil {
			return fmt.Errorf("save: %w", err)
		}
		return backend.Save(ctx, key, text)
	}

	dir := filepath.Dir(path)
	tmp := path + ".tmp"
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save: %w", err)
		}
	}
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save: %w", err)
	}
	return nil
}
