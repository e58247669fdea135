// Package storage implements the content-addressed file store backing the
// transfer protocol.
//
// Stored files are immutable: Put names each file by the MD5 of its content
// plus a sniffed extension, so identical uploads collapse to one entry and
// concurrent identical uploads are idempotent. Two backends implement the
// same interface: a flat directory (DirStore) and an S3 bucket (S3Store).
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Store is the backend contract consumed by the request dispatcher.
// Implementations are safe for concurrent use from multiple connections;
// no atomicity is guaranteed across distinct operations.
type Store interface {
	// List returns the names of all stored files.
	List(ctx context.Context) ([]string, error)

	// Fetch returns the content of the named file.
	// Returns a *NotFoundError if the name is not stored.
	Fetch(ctx context.Context, name string) ([]byte, error)

	// Put stores data under its canonical content-addressed name and
	// returns that name. Storing identical bytes twice yields the same
	// name and a single entry.
	Put(ctx context.Context, data []byte) (string, error)

	// Remove deletes the named file.
	// Returns a *NotFoundError if the name is not stored.
	Remove(ctx context.Context, name string) error
}

// NotFoundError reports a name absent from storage.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Name)
}

// IsNotFound returns true if err is a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// validName rejects names that could escape the store's namespace.
// Stored names are flat: no separators, no traversal.
func validName(name string) error {
	if name == "" {
		return errors.New("empty filename")
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid filename: %s", name)
	}
	return nil
}

// Open constructs a Store from a location spec:
//
//	s3://bucket/prefix  → S3Store
//	anything else       → DirStore rooted at that path
func Open(ctx context.Context, spec string) (Store, error) {
	if after, ok := strings.CutPrefix(spec, "s3://"); ok {
		bucket, prefix, _ := strings.Cut(after, "/")
		return NewS3Store(ctx, S3Config{Bucket: bucket, Prefix: prefix})
	}
	return NewDirStore(spec)
}
