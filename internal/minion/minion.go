// Package minion runs a pipeline over the buffers of one worker message.
package minion

import (
	"errors"
	"fmt"
	"image"
	"math"

	"go-pixel-worker/internal/models"
	"go-pixel-worker/internal/pipeline"
)

var (
	ErrNoBuffers    = errors.New("message carries no buffers")
	ErrEmptyResult  = errors.New("operation returned no output")
	ErrSizeMismatch = errors.New("output size does not match input")
)

type Minion struct {
	pipeline *pipeline.Pipeline
}

func New(p *pipeline.Pipeline) *Minion {
	return &Minion{pipeline: p}
}

// Run returns a buffer of the same length as msg.Buffers[0]. Stage panics are not
// recovered here.
func (m *Minion) Run(msg models.Message) ([]byte, error) {
	if len(msg.Buffers) == 0 {
		return nil, ErrNoBuffers
	}
	if msg.ImageOps {
		return m.runImages(msg)
	}
	return m.runPixels(msg)
}

func (m *Minion) runImages(msg models.Message) ([]byte, error) {
	images := make([]*image.NRGBA, len(msg.Buffers))
	for b, buf := range msg.Buffers {
		images[b] = (&models.Image{Width: msg.Width, Height: msg.Height, Data: buf}).NRGBA()
	}
	images = m.pipeline.RunImages(images, msg.Meta)
	if len(images) == 0 || images[0] == nil {
		return nil, ErrEmptyResult
	}

	out := images[0]
	want := len(msg.Buffers[0])
	if out.Rect.Dx() != msg.Width || out.Rect.Dy() != msg.Height {
		return nil, fmt.Errorf("%w: got %dx%d, want %dx%d", ErrSizeMismatch,
			out.Rect.Dx(), out.Rect.Dy(), msg.Width, msg.Height)
	}
	if out.Stride == 4*msg.Width && len(out.Pix) >= want {
		return out.Pix[:want], nil
	}
	// Sub-images from a larger raster need compacting.
	return models.FromImage(out).Data, nil
}

func (m *Minion) runPixels(msg models.Message) ([]byte, error) {
	numBuffers := len(msg.Buffers)
	numBytes := len(msg.Buffers[0])
	for b := 1; b < numBuffers; b++ {
		if len(msg.Buffers[b]) != numBytes {
			return nil, fmt.Errorf("%w: buffer %d has %d bytes, want %d", ErrSizeMismatch, b, len(msg.Buffers[b]), numBytes)
		}
	}

	output := make([]byte, numBytes)
	pixels := make([]pipeline.PixelValue, numBuffers)
	for i := 0; i+4 <= numBytes; i += 4 {
		for j, buf := range msg.Buffers {
			pixels[j] = pipeline.PixelValue{float64(buf[i]), float64(buf[i+1]), float64(buf[i+2]), float64(buf[i+3])}
		}
		result := m.pipeline.RunPixels(pixels, msg.Meta)
		if len(result) == 0 {
			return nil, ErrEmptyResult
		}
		px := result[0]
		output[i] = Clamp(px[0])
		output[i+1] = Clamp(px[1])
		output[i+2] = Clamp(px[2])
		output[i+3] = Clamp(px[3])
	}
	return output, nil
}

// Clamp converts a channel value to a byte: NaN is 0, values are limited to
// [0,255] and rounded half to even.
func Clamp(v float64) byte {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(math.RoundToEven(v))
}
