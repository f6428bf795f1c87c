// Package store implements the save-destination backends a session can
// be persisted to: the local filesystem (atomic rename) and S3 (the
// `:w s3://bucket/key` destination aws-sdk-go-v2 makes a natural fit
// for).
package store

import "context"

// Backend is the persistence boundary internal/session.Manager saves
// snapshots through and that the save command-language entry (`:w`)
// ultimately resolves a destination string to.
type Backend interface {
	Save(ctx context.Context, id string, text string) error
	Load(ctx context.Context, id string) (text string, ok bool, err error)
}
