package models

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var ErrInvalidImage = errors.New("invalid image")

// Image is a non-premultiplied RGBA raster, 4 bytes per pixel, row-major.
type Image struct {
	Width  int
	Height int
	Data   []byte
}

func NewImage(width, height int) *Image {
	return &Image{
		Width:  width,
		Height: height,
		Data:   make([]byte, 4*width*height),
	}
}

// FromImage converts any decoded image into an Image.
func FromImage(img image.Image) *Image {
	nrgba := imaging.Clone(img)
	return FromNRGBA(nrgba)
}

// FromNRGBA wraps img's pixels without copying when the stride is tight.
func FromNRGBA(img *image.NRGBA) *Image {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if img.Stride == 4*w && img.Rect.Min == (image.Point{}) {
		return &Image{Width: w, Height: h, Data: img.Pix[:4*w*h]}
	}
	return FromImage(img)
}

// NRGBA returns a view sharing Data.
func (i *Image) NRGBA() *image.NRGBA {
	return &image.NRGBA{
		Pix:    i.Data,
		Stride: 4 * i.Width,
		Rect:   image.Rect(0, 0, i.Width, i.Height),
	}
}

func (i *Image) Validate() error {
	if i == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidImage)
	}
	if i.Width < 0 || i.Height < 0 {
		return fmt.Errorf("%w: negative size %dx%d", ErrInvalidImage, i.Width, i.Height)
	}
	if want := 4 * i.Width * i.Height; len(i.Data) != want {
		return fmt.Errorf("%w: %dx%d needs %d bytes, got %d", ErrInvalidImage, i.Width, i.Height, want, len(i.Data))
	}
	return nil
}

func (i *Image) Clone() *Image {
	data := make([]byte, len(i.Data))
	copy(data, i.Data)
	return &Image{Width: i.Width, Height: i.Height, Data: data}
}
