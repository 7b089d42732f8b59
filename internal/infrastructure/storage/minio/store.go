package minio

import (
	"bytes"
	"context"
	"io"
	"sort"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// Store keeps artifacts as objects in one bucket.
type Store struct {
	api    ObjectAPI
	bucket string
	logger logging.Logger
}

// NewStore wraps an already connected ObjectAPI.
func NewStore(api ObjectAPI, bucket string, log logging.Logger) *Store {
	return &Store{api: api, bucket: bucket, logger: logging.OrNop(log)}
}

// EnsureBucket creates the bucket when missing.
func (s *Store) EnsureBucket(ctx context.Context, region string) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to check bucket").WithDetail(s.bucket)
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return errors.Wrap(err, errors.ErrCodeArtifactWrite, "failed to create bucket").WithDetail(s.bucket)
	}
	s.logger.Info("created bucket", logging.String("bucket", s.bucket))
	return nil
}

// Put uploads data under key.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeArtifactWrite, "object upload failed").WithDetail(key)
	}
	return nil
}

// Get downloads the object under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.api.OpenObject(ctx, s.bucket, key)
	if err != nil {
		return nil, s.readError(err, key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.readError(err, key)
	}
	return data, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.api.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeArtifactRead, "object stat failed").WithDetail(key)
}

// List returns the keys under prefix in lexical order.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for info := range s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, errors.Wrap(info.Err, errors.ErrCodeArtifactRead, "object listing failed").WithDetail(prefix)
		}
		keys = append(keys, info.Key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Delete removes key.  Removing a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNoSuchKey(err) {
		return errors.Wrap(err, errors.ErrCodeArtifactWrite, "object delete failed").WithDetail(key)
	}
	return nil
}

// Location names the backing bucket.
func (s *Store) Location() string {
	return "s3://" + s.bucket
}

func (s *Store) readError(err error, key string) error {
	if isNoSuchKey(err) {
		return errors.New(errors.ErrCodeArtifactNotFound, "artifact not found").WithDetail(key)
	}
	return errors.Wrap(err, errors.ErrCodeArtifactRead, "object download failed").WithDetail(key)
}

func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchObject"
}
