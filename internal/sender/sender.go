package sender

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"go-pixel-worker/internal/models"
)

type SenderService interface {
	Send(ctx context.Context, name string, img *models.Image) (string, error)
}

// FileSender writes processed images into a directory.
type FileSender struct {
	dir    string
	format string
}

func NewFileSender(dir, format string) (*FileSender, error) {
	format = strings.ToLower(format)
	switch format {
	case "png", "jpg", "jpeg":
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &FileSender{dir: dir, format: format}, nil
}

// Send saves img as <dir>/<name>.<format> and returns the path.
func (s *FileSender) Send(ctx context.Context, name string, img *models.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := img.Validate(); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	path := filepath.Join(s.dir, name+"."+s.format)
	if err := imaging.Save(img.NRGBA(), path, imaging.JPEGQuality(90)); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	slog.Info("Successfully saved image", "path", path)
	return path, nil
}
