package s3

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStorageClient uploads backup objects.
type ObjectStorageClient interface {
	Connect(ctx context.Context, cfg Config) error
	Upload(ctx context.Context, bucket, objectName string, content io.Reader, size int64, contentType string) (UploadInfo, error)
}

// Config holds the S3-compatible endpoint settings.
type Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string
}

// UploadInfo describes a stored object.
type UploadInfo struct {
	Bucket       string
	Key          string
	Size         int64
	PresignedURL string
}

// ObjectStorage wraps a minio client.
type ObjectStorage struct {
	Conn   *minio.Client
	region string
}

// NewObjectStorage returns an unconnected ObjectStorage.
func NewObjectStorage() *ObjectStorage {
	return &ObjectStorage{}
}

// Connect creates the minio client and checks the endpoint by listing buckets.
func (o *ObjectStorage) Connect(ctx context.Context, cfg Config) error {
	var err error
	o.Conn, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return fmt.Errorf("failed to create minio client: %w", err)
	}
	o.region = cfg.Region
	if o.region == "" {
		o.region = "us-east-1"
	}

	if _, err = o.Conn.ListBuckets(ctx); err != nil {
		return fmt.Errorf("failed to establish minio connection: %w", err)
	}
	return nil
}

// Upload stores content under bucket/objectName, creating the bucket when missing.
// The returned presigned URL is valid for seven days.
func (o *ObjectStorage) Upload(ctx context.Context, bucket, objectName string, content io.Reader, size int64, contentType string) (UploadInfo, error) {
	if o.Conn == nil {
		return UploadInfo{}, fmt.Errorf("object storage is not connected")
	}

	if err := o.Conn.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: o.region}); err != nil {
		exists, errBucketExists := o.Conn.BucketExists(ctx, bucket)
		if errBucketExists != nil || !exists {
			return UploadInfo{}, fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
	}

	info, err := o.Conn.PutObject(ctx, bucket, objectName, content, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return UploadInfo{}, fmt.Errorf("failed to upload %s: %w", objectName, err)
	}

	presigned, err := o.Conn.PresignedGetObject(ctx, bucket, objectName, 7*24*time.Hour, nil)
	if err != nil {
		return UploadInfo{}, fmt.Errorf("failed to presign %s: %w", objectName, err)
	}

	return UploadInfo{
		Bucket:       bucket,
		Key:          info.Key,
		Size:         info.Size,
		PresignedURL: presigned.String(),
	}, nil
}
