// Package pipeline defines the stages a processor runs over pixels or whole images.
package pipeline

import (
	"errors"
	"fmt"
	"image"
)

var (
	ErrNoOperations        = errors.New("pipeline has no operations")
	ErrGranularityMismatch = errors.New("operation does not match pipeline granularity")
)

type Granularity int

const (
	Pixel Granularity = iota
	Image
)

func (g Granularity) String() string {
	switch g {
	case Image:
		return "image"
	default:
		return "pixel"
	}
}

// ParseGranularity accepts "pixel", "image" or an empty string (pixel).
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "", "pixel":
		return Pixel, nil
	case "image":
		return Image, nil
	}
	return Pixel, fmt.Errorf("unknown granularity %q", s)
}

// Pixel values are R, G, B, A. Stages may leave them out of [0,255] or fractional;
// they are clamped when written back to the byte buffer.
type PixelValue [4]float64

type PixelOperation interface {
	ApplyPixels(pixels []PixelValue, meta any, lib Lib) []PixelValue
}

type ImageOperation interface {
	ApplyImages(images []*image.NRGBA, meta any, lib Lib) []*image.NRGBA
}

type PixelFunc func(pixels []PixelValue, meta any) []PixelValue

func (f PixelFunc) ApplyPixels(pixels []PixelValue, meta any, _ Lib) []PixelValue {
	return f(pixels, meta)
}

type LibPixelFunc func(pixels []PixelValue, meta any, lib Lib) []PixelValue

func (f LibPixelFunc) ApplyPixels(pixels []PixelValue, meta any, lib Lib) []PixelValue {
	return f(pixels, meta, lib)
}

type ImageFunc func(images []*image.NRGBA, meta any) []*image.NRGBA

func (f ImageFunc) ApplyImages(images []*image.NRGBA, meta any, _ Lib) []*image.NRGBA {
	return f(images, meta)
}

type LibImageFunc func(images []*image.NRGBA, meta any, lib Lib) []*image.NRGBA

func (f LibImageFunc) ApplyImages(images []*image.NRGBA, meta any, lib Lib) []*image.NRGBA {
	return f(images, meta, lib)
}

// Operation is a single stage. It must implement PixelOperation or ImageOperation,
// matching the granularity of the pipeline it is added to.
type Operation any

// Pipeline is an immutable, ordered list of stages of one granularity.
type Pipeline struct {
	granularity Granularity
	pixelOps    []PixelOperation
	imageOps    []ImageOperation
	lib         Lib
}

func New(granularity Granularity, lib Lib, ops ...Operation) (*Pipeline, error) {
	if len(ops) == 0 {
		return nil, ErrNoOperations
	}
	p := &Pipeline{granularity: granularity, lib: lib}
	for i, op := range ops {
		switch granularity {
		case Image:
			imageOp, ok := op.(ImageOperation)
			if !ok {
				return nil, fmt.Errorf("stage %d (%T): %w", i, op, ErrGranularityMismatch)
			}
			p.imageOps = append(p.imageOps, imageOp)
		default:
			pixelOp, ok := op.(PixelOperation)
			if !ok {
				return nil, fmt.Errorf("stage %d (%T): %w", i, op, ErrGranularityMismatch)
			}
			p.pixelOps = append(p.pixelOps, pixelOp)
		}
	}
	return p, nil
}

// Pixels builds a pixel-granularity pipeline without a helper library.
func Pixels(ops ...PixelOperation) *Pipeline {
	return &Pipeline{granularity: Pixel, pixelOps: append([]PixelOperation(nil), ops...)}
}

// Images builds an image-granularity pipeline without a helper library.
func Images(ops ...ImageOperation) *Pipeline {
	return &Pipeline{granularity: Image, imageOps: append([]ImageOperation(nil), ops...)}
}

func (p *Pipeline) Granularity() Granularity {
	return p.granularity
}

func (p *Pipeline) ImageOps() bool {
	return p.granularity == Image
}

func (p *Pipeline) Len() int {
	if p.granularity == Image {
		return len(p.imageOps)
	}
	return len(p.pixelOps)
}

func (p *Pipeline) Lib() Lib {
	return p.lib
}

// RunPixels threads one set of per-buffer pixels through every stage.
func (p *Pipeline) RunPixels(pixels []PixelValue, meta any) []PixelValue {
	for _, op := range p.pixelOps {
		pixels = op.ApplyPixels(pixels, meta, p.lib)
	}
	return pixels
}

// RunImages threads the images through every stage.
func (p *Pipeline) RunImages(images []*image.NRGBA, meta any) []*image.NRGBA {
	for _, op := range p.imageOps {
		images = op.ApplyImages(images, meta, p.lib)
	}
	return images
}
