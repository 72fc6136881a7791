// Package source produces the images fed into the processor: files on disk or
// generated noise for benchmarking.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/tjarratt/babble"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"go-pixel-worker/internal/models"
)

// Named pairs an image with the name its output is saved under.
type Named struct {
	Name  string
	Image *models.Image
}

type LoaderService interface {
	Load(ctx context.Context, paths []string) ([]Named, error)
}

type Loader struct {
	sem *semaphore.Weighted
}

// NewLoader decodes at most parallel files at once.
func NewLoader(parallel int) *Loader {
	if parallel < 1 {
		parallel = 1
	}
	return &Loader{sem: semaphore.NewWeighted(int64(parallel))}
}

// Load decodes every path, honouring EXIF orientation. Results keep the order of
// paths. The first failure cancels the remaining loads.
func (l *Loader) Load(ctx context.Context, paths []string) ([]Named, error) {
	out := make([]Named, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		if err := l.sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer l.sem.Release(1)
			img, err := imaging.Open(path, imaging.AutoOrientation(true))
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", path, err)
			}
			out[i] = Named{Name: baseName(path), Image: models.FromImage(img)}
			slog.Debug("Loaded image", "path", path, "width", out[i].Image.Width, "height", out[i].Image.Height)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Synthetic generates n noise images of w x h. The same seed yields the same
// pixels; names are random.
func Synthetic(n, w, h int, seed int64) []Named {
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	out := make([]Named, n)
	for i := range out {
		img := models.NewImage(w, h)
		for j := range img.Data {
			img.Data[j] = byte(rng.IntN(256))
		}
		out[i] = Named{Name: syntheticName(), Image: img}
	}
	return out
}

// syntheticName is two dictionary words plus a short id. Hosts without a word
// list get the id alone.
func syntheticName() (name string) {
	id := uuid.New().String()[:8]
	defer func() {
		if recover() != nil {
			name = "synthetic-" + id
		}
	}()
	b := babble.NewBabbler()
	b.Count = 2
	b.Separator = "-"
	words := strings.ToLower(b.Babble())
	words = strings.Map(func(r rune) rune {
		if r == '\'' || r == ' ' || r == '/' {
			return -1
		}
		return r
	}, words)
	return words + "-" + id
}
