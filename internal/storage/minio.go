/**
 * Report archive on MinIO
 *
 * Redaction reports are copied to <room>/<roomID>/<status>/<file> so they
 * survive workspace cleanup.
 */

package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig holds object storage settings. An empty Endpoint disables archiving.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ObjectStore archives report files
type ObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore connects to MinIO and creates the bucket when missing
func NewObjectStore(ctx context.Context, cfg *MinIOConfig) (*ObjectStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("MinIO bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &ObjectStore{client: client, bucket: cfg.Bucket}, nil
}

// ReportKey is the object key for a report file
func ReportKey(room, roomID, status, file string) string {
	return path.Join(room, roomID, status, filepath.Base(file))
}

// ArchiveReport uploads a local report file under key
func (o *ObjectStore) ArchiveReport(ctx context.Context, key, localPath string) error {
	_, err := o.client.FPutObject(ctx, o.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "application/xml",
	})
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", key, err)
	}
	return nil
}

// Ping checks that the bucket is reachable
func (o *ObjectStore) Ping(ctx context.Context) error {
	if _, err := o.client.BucketExists(ctx, o.bucket); err != nil {
		return fmt.Errorf("MinIO health check failed: %w", err)
	}
	return nil
}
