// Package blobstore stores binary objects (cover images, thumbnails, avatars)
// under store-generated identifiers, separate from the document store.
package blobstore

import (
	"context"
	"io"
	"time"
)

// Info describes a stored object.
type Info struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	ContentType string            `json:"contentType"`
	Size        int64             `json:"size"`
	Checksum    string            `json:"checksum"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	UploadedAt  time.Time         `json:"uploadedAt"`
}

// Object is an open stored object. Callers must close it.
type Object struct {
	Info
	io.ReadCloser
}

// Store is the binary object store contract.
type Store interface {
	// Put streams r into a new object and returns its description.
	Put(ctx context.Context, name string, r io.Reader, contentType string, metadata map[string]string) (*Info, error)
	// Open returns the object with the given id.
	Open(ctx context.Context, id string) (*Object, error)
	// Delete removes the object with the given id.
	Delete(ctx context.Context, id string) error
}
