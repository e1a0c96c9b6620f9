package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

const zipContentType = "application/zip"

type Storage struct {
	client       *miniogo.Client
	uploadBucket string
	zipBucket    string
}

type StorageConfig struct {
	Endpoint     string
	AccessKey    string
	SecretKey    string
	UseSSL       bool
	Region       string
	UploadBucket string
	ZipBucket    string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{
		client:       client,
		uploadBucket: cfg.UploadBucket,
		zipBucket:    cfg.ZipBucket,
	}, nil
}

func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.uploadBucket, s.zipBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// DownloadVideo fetches an uploaded video to destPath. A missing or empty
// object is reported as ErrResourceSetup since retrying cannot fix it.
func (s *Storage) DownloadVideo(ctx context.Context, objectKey string, destPath string) error {
	info, err := s.client.StatObject(ctx, s.uploadBucket, objectKey, miniogo.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("video %s: %w", objectKey, entity.ErrResourceSetup)
		}
		return fmt.Errorf("stat video: %w", err)
	}
	if info.Size == 0 {
		return fmt.Errorf("video %s is empty: %w", objectKey, entity.ErrResourceSetup)
	}

	if err := s.client.FGetObject(ctx, s.uploadBucket, objectKey, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download video: %w", err)
	}
	return nil
}

func (s *Storage) UploadZip(ctx context.Context, objectKey string, reader io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.zipBucket, objectKey, reader, size, miniogo.PutObjectOptions{
		ContentType: zipContentType,
	})
	if err != nil {
		return fmt.Errorf("upload zip: %w", err)
	}
	return nil
}

// ZipURL returns a time-limited download link for a frames archive.
func (s *Storage) ZipURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-type", zipContentType)
	u, err := s.client.PresignedGetObject(ctx, s.zipBucket, objectKey, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign zip: %w", err)
	}
	return u.String(), nil
}

func isNotFound(err error) bool {
	code := miniogo.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
