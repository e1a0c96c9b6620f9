package port

import (
	"context"
	"io"
	"time"
)

// VideoStorage moves job inputs and outputs in and out of object storage.
// DownloadVideo reports a missing or empty object as entity.ErrResourceSetup.
type VideoStorage interface {
	DownloadVideo(ctx context.Context, objectKey string, destPath string) error
	UploadZip(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}

type ZipLinker interface {
	ZipURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}
