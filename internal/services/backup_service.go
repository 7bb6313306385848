package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/benmeehan/pin-locator/pkg/s3"
	"github.com/rs/zerolog"
)

// Exporter produces an export document and its file name.
type Exporter interface {
	Export(ctx context.Context) ([]byte, string, error)
}

// BackupService uploads pin exports to S3-compatible object storage.
type BackupService struct {
	exporter Exporter
	storage  s3.ObjectStorageClient
	bucket   string
	prefix   string
	logger   zerolog.Logger
}

// NewBackupService creates a BackupService. storage must already be connected.
func NewBackupService(exporter Exporter, storage s3.ObjectStorageClient, bucket, prefix string, logger zerolog.Logger) *BackupService {
	return &BackupService{
		exporter: exporter,
		storage:  storage,
		bucket:   bucket,
		prefix:   prefix,
		logger:   logger,
	}
}

// Backup exports all pins and stores the document under prefix + export file name.
func (b *BackupService) Backup(ctx context.Context) (s3.UploadInfo, error) {
	data, name, err := b.exporter.Export(ctx)
	if err != nil {
		return s3.UploadInfo{}, err
	}

	key := b.prefix + name
	info, err := b.storage.Upload(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), "application/json")
	if err != nil {
		b.logger.Error().Err(err).Str("bucket", b.bucket).Str("key", key).Msg("Backup upload failed")
		return s3.UploadInfo{}, fmt.Errorf("backup upload: %w", err)
	}

	b.logger.Info().Str("bucket", info.Bucket).Str("key", info.Key).Int64("size", info.Size).Msg("Backup uploaded")
	return info, nil
}
