package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wildatlas/backend/internal/config"
	"github.com/wildatlas/backend/pkg/logger"
)

// MediaClient stores uploaded card images and animal sounds. Object names
// are the relative paths persisted on animal records.
type MediaClient struct {
	client *minio.Client
	bucket string
}

func NewMediaClient(cfg config.MinIOConfig) (*MediaClient, error) {
	var creds *credentials.Credentials
	if cfg.AccessKey == "" {
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}

	return &MediaClient{client: client, bucket: cfg.Bucket}, nil
}

func (m *MediaClient) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, objectName, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		logger.Error("media_upload_failed", err, map[string]interface{}{
			"object_name":  objectName,
			"size":         size,
			"content_type": contentType,
			"bucket":       m.bucket,
		})
		return err
	}
	logger.Info("media_upload_success", map[string]interface{}{
		"object_name":  objectName,
		"size":         size,
		"content_type": contentType,
		"bucket":       m.bucket,
	})
	return nil
}

func (m *MediaClient) Delete(ctx context.Context, objectName string) error {
	err := m.client.RemoveObject(ctx, m.bucket, objectName, minio.RemoveObjectOptions{})
	if err != nil {
		logger.Error("media_delete_failed", err, map[string]interface{}{
			"object_name": objectName,
			"bucket":      m.bucket,
		})
	}
	return err
}

func (m *MediaClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed creating bucket %s: %w", m.bucket, err)
	}
	return nil
}
