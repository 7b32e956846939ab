package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/danthegoodman1/icefields/s3_helper"
)

type (
	S3DataStore struct {
		bucket string
		prefix string
	}
)

func NewS3DataStore(uri string) (*S3DataStore, error) {
	bucket, prefix, err := s3_helper.ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("error in s3_helper.ParseURI: %w", err)
	}
	logger.Debug().Str("bucket", bucket).Str("prefix", prefix).Msg("using s3 datastore")
	return &S3DataStore{
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

func (sds *S3DataStore) key(name string) string {
	if sds.prefix == "" {
		return name
	}
	return path.Join(sds.prefix, name)
}

func (sds *S3DataStore) ReadFile(ctx context.Context, name string) ([]byte, error) {
	b, err := s3_helper.ReadBytesFromS3(ctx, sds.bucket, sds.key(name))
	if errors.Is(err, s3_helper.ErrNoSuchKey) {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("error in ReadBytesFromS3: %w", err)
	}
	return b, nil
}

func (sds *S3DataStore) WriteFile(ctx context.Context, name string, r io.Reader) error {
	_, err := s3_helper.WriteBytesToS3(ctx, sds.bucket, sds.key(name), r, nil)
	if err != nil {
		return fmt.Errorf("error in WriteBytesToS3: %w", err)
	}
	return nil
}

func (sds *S3DataStore) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s3_helper.ListKeys(ctx, sds.bucket, sds.key(prefix))
	if err != nil {
		return nil, fmt.Errorf("error in ListKeys: %w", err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if sds.prefix != "" {
			k = strings.TrimPrefix(k, sds.prefix+"/")
		}
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

func (sds *S3DataStore) Shutdown(context.Context) error {
	return nil
}
