// Package minio stores collector artifacts in an S3-compatible bucket.
package minio

import (
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/Protocol-Intelligence/internal/config"
	"github.com/turtacn/Protocol-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/Protocol-Intelligence/pkg/errors"
)

// ObjectAPI is the subset of the MinIO SDK the store needs.  OpenObject
// stands in for GetObject so the read path can be faked.
type ObjectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
}

type sdkClient struct {
	*minio.Client
}

func (c sdkClient) OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	return c.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
}

// Dial connects to the endpoint, verifies reachability and makes sure the
// bucket exists.
func Dial(cfg config.MinIOConfig, log logging.Logger) (*Store, error) {
	log = logging.OrNop(log)
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := NewStore(sdkClient{client}, cfg.Bucket, log)
	if err := store.EnsureBucket(ctx, cfg.Region); err != nil {
		return nil, err
	}
	log.Info("minio artifact store ready",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
		logging.Bool("ssl", cfg.UseSSL))
	return store, nil
}
