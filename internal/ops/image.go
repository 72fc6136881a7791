package ops

import (
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blend"
	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"

	"go-pixel-worker/internal/pipeline"
)

type imgs = []*image.NRGBA

// replaceFirst swaps the first image for img, keeping the others for later stages.
func replaceFirst(images imgs, img image.Image) imgs {
	out := make(imgs, len(images))
	copy(out, images)
	if nrgba, ok := img.(*image.NRGBA); ok {
		out[0] = nrgba
	} else {
		out[0] = imaging.Clone(img)
	}
	return out
}

type Blur struct {
	Sigma float64
}

func (b Blur) ApplyImages(images imgs, _ any, _ pipeline.Lib) imgs {
	return replaceFirst(images, imaging.Blur(images[0], b.Sigma))
}

type Sharpen struct {
	Sigma float64
}

func (s Sharpen) ApplyImages(images imgs, _ any, _ pipeline.Lib) imgs {
	return replaceFirst(images, imaging.Sharpen(images[0], s.Sigma))
}

type Gamma struct {
	Value float64
}

func (g Gamma) ApplyImages(images imgs, _ any, _ pipeline.Lib) imgs {
	return replaceFirst(images, imaging.AdjustGamma(images[0], g.Value))
}

// Contrast, Brightness and Saturation take a change in [-1, 1].
type Contrast struct {
	Change float64
}

func (c Contrast) ApplyImages(images imgs, _ any, _ pipeline.Lib) imgs {
	return replaceFirst(images, adjust.Contrast(images[0], c.Change))
}

type Brightness struct {
	Change float64
}

func (b Brightness) ApplyImages(images imgs, _ any, _ pipeline.Lib) imgs {
	return replaceFirst(images, adjust.Brightness(images[0], b.Change))
}

type Saturation struct {
	Change float64
}

func (s Saturation) ApplyImages(images imgs, _ any, _ pipeline.Lib) imgs {
	return replaceFirst(images, adjust.Saturation(images[0], s.Change))
}

var Sobel = pipeline.ImageFunc(func(images imgs, _ any) imgs {
	return replaceFirst(images, effect.Sobel(images[0]))
})

var Emboss = pipeline.ImageFunc(func(images imgs, _ any) imgs {
	return replaceFirst(images, effect.Emboss(images[0]))
})

// Difference replaces the first image with |first - second|. With one input it is
// a no-op.
var Difference = pipeline.ImageFunc(func(images imgs, _ any) imgs {
	if len(images) < 2 {
		return images
	}
	return replaceFirst(images, blend.Difference(images[0], images[1]))
})
