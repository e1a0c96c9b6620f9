package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

// ZipCreator stores each frame under its FileName, in collection order.
type ZipCreator struct{}

func NewZipCreator() *ZipCreator {
	return &ZipCreator{}
}

func (z *ZipCreator) WriteArchive(ctx context.Context, frames []entity.Frame, w io.Writer) error {
	zipWriter := zip.NewWriter(w)

	for _, f := range frames {
		select {
		case <-ctx.Done():
			zipWriter.Close()
			return ctx.Err()
		default:
		}

		if err := z.addFrame(zipWriter, f); err != nil {
			zipWriter.Close()
			return fmt.Errorf("add %s to zip: %w", f.FileName(), err)
		}
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return nil
}

func (z *ZipCreator) addFrame(zw *zip.Writer, f entity.Frame) error {
	header := &zip.FileHeader{
		Name:     f.FileName(),
		Method:   zip.Store, // JPEG data does not deflate
		Modified: time.Now(),
	}

	writer, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = writer.Write(f.Image)
	return err
}
