package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/inkaso/callqa/pkg/config"
)

// ErrNotFound is returned when a recording is not in the archive.
var ErrNotFound = errors.New("storage: recording not found")

// RecordingArchive keeps downloaded call audio so retries and forced
// re-transcriptions do not hit the call platform again.
type RecordingArchive struct {
	client *minio.Client
	bucket string
}

// NewRecordingArchive creates the archive client and ensures the bucket exists
func NewRecordingArchive(cfg *config.StorageConfig) (*RecordingArchive, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	archive := &RecordingArchive{
		client: minioClient,
		bucket: cfg.BucketName,
	}

	ctx := context.Background()
	if err := archive.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize bucket: %w", err)
	}

	return archive, nil
}

func (a *RecordingArchive) ensureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func objectName(activityName string) string {
	return "recordings/" + activityName
}

// Put stores a recording under the activity name
func (a *RecordingArchive) Put(ctx context.Context, activityName string, audio []byte, contentType string) error {
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	_, err := a.client.PutObject(ctx, a.bucket, objectName(activityName),
		bytes.NewReader(audio), int64(len(audio)), minio.PutObjectOptions{
			ContentType: contentType,
		})
	if err != nil {
		return fmt.Errorf("failed to upload recording: %w", err)
	}
	return nil
}

// Get returns an archived recording, or ErrNotFound when absent
func (a *RecordingArchive) Get(ctx context.Context, activityName string) ([]byte, string, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, objectName(activityName), minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch recording: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		var respErr minio.ErrorResponse
		if errors.As(err, &respErr) && respErr.Code == "NoSuchKey" {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to read recording: %w", err)
	}

	stat, err := obj.Stat()
	if err != nil {
		var respErr minio.ErrorResponse
		if errors.As(err, &respErr) && respErr.Code == "NoSuchKey" {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("failed to stat recording: %w", err)
	}

	return data, stat.ContentType, nil
}

// Delete removes an archived recording
func (a *RecordingArchive) Delete(ctx context.Context, activityName string) error {
	err := a.client.RemoveObject(ctx, a.bucket, objectName(activityName), minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete recording: %w", err)
	}
	return nil
}
