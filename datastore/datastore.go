package datastore

import (
	"context"
	"errors"
	"io"

	"github.com/danthegoodman1/icefields/gologger"
	"github.com/danthegoodman1/icefields/s3_helper"
)

var (
	logger = gologger.NewLogger()

	ErrNotFound = errors.New("file not found")
)

type (
	// DataStore holds table config files and resolved output files. Names are
	// slash separated paths relative to the store root.
	DataStore interface {
		ReadFile(ctx context.Context, name string) ([]byte, error)
		WriteFile(ctx context.Context, name string, r io.Reader) error
		// List returns the names under prefix in lexical order
		List(ctx context.Context, prefix string) ([]string, error)

		Shutdown(ctx context.Context) error
	}
)

// New picks the store for root, s3://bucket/prefix or a local directory.
func New(root string) (DataStore, error) {
	if s3_helper.IsURI(root) {
		return NewS3DataStore(root)
	}
	return NewDiskDataStore(root)
}
