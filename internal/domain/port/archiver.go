package port

import (
	"context"
	"io"

	"github.com/fiapx/fiapx-frame-extractor/internal/domain/entity"
)

type Archiver interface {
	WriteArchive(ctx context.Context, frames []entity.Frame, w io.Writer) error
}
