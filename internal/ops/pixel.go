// Package ops provides ready-made pipeline stages and a registry to build pipelines
// from configuration.
package ops

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"

	"go-pixel-worker/internal/pipeline"
)

type px = []pipeline.PixelValue

var Identity = pipeline.PixelFunc(func(pixels px, _ any) px {
	return pixels
})

// Luminance replaces RGB with Rec. 709 luma.
var Luminance = pipeline.PixelFunc(func(pixels px, _ any) px {
	p := &pixels[0]
	l := 0.2126*p[0] + 0.7152*p[1] + 0.0722*p[2]
	p[0], p[1], p[2] = l, l, l
	return pixels
})

var Invert = pipeline.PixelFunc(func(pixels px, _ any) px {
	p := &pixels[0]
	p[0], p[1], p[2] = 255-p[0], 255-p[1], 255-p[2]
	return pixels
})

// Threshold highlights pixels whose red channel is above Level in a translucent
// yellow and hides the rest. A "threshold" entry in a pipeline.Meta overrides Level.
type Threshold struct {
	Level float64
}

func (t Threshold) ApplyPixels(pixels px, meta any, _ pipeline.Lib) px {
	level := t.Level
	if m, ok := meta.(pipeline.Meta); ok {
		if v, ok := m.Float("threshold"); ok {
			level = v
		}
	}
	p := &pixels[0]
	if p[0] > level {
		*p = pipeline.PixelValue{255, 255, 150, 200}
	} else {
		p[3] = 0
	}
	return pixels
}

// Scale multiplies every channel, alpha included.
type Scale struct {
	Factor float64
}

func (s Scale) ApplyPixels(pixels px, _ any, _ pipeline.Lib) px {
	for c := range pixels[0] {
		pixels[0][c] *= s.Factor
	}
	return pixels
}

// NormalizedDiff maps (r-g)/(r+g) onto a grey level using the "sum" and "diff"
// library functions.
var NormalizedDiff = pipeline.LibPixelFunc(func(pixels px, _ any, lib pipeline.Lib) px {
	p := pixels[0]
	nd := lib.MustCall("diff", p[0], p[1]) / lib.MustCall("sum", p[0], p[1])
	if math.IsNaN(nd) {
		nd = 0
	}
	v := math.Round(255 * (nd + 1) / 2)
	return px{{v, v, v, p[3]}}
})

// HueShift rotates the hue in HSL space.
type HueShift struct {
	Degrees float64
}

func (h HueShift) ApplyPixels(pixels px, _ any, _ pipeline.Lib) px {
	p := &pixels[0]
	c := colorful.Color{R: p[0] / 255, G: p[1] / 255, B: p[2] / 255}.Clamped()
	hue, sat, light := c.Hsl()
	hue = math.Mod(hue+h.Degrees, 360)
	if hue < 0 {
		hue += 360
	}
	out := colorful.Hsl(hue, sat, light).Clamped()
	p[0], p[1], p[2] = out.R*255, out.G*255, out.B*255
	return pixels
}

// ColorMatrix applies a 3x3 transform to RGB; alpha is kept.
type ColorMatrix struct {
	m *mat.Dense
}

// NewColorMatrix takes the matrix in row-major order.
func NewColorMatrix(values [9]float64) *ColorMatrix {
	return &ColorMatrix{m: mat.NewDense(3, 3, values[:])}
}

func Sepia() *ColorMatrix {
	return NewColorMatrix([9]float64{
		0.393, 0.769, 0.189,
		0.349, 0.686, 0.168,
		0.272, 0.534, 0.131,
	})
}

func (cm *ColorMatrix) ApplyPixels(pixels px, _ any, _ pipeline.Lib) px {
	p := &pixels[0]
	in := mat.NewVecDense(3, []float64{p[0], p[1], p[2]})
	var out mat.VecDense
	out.MulVec(cm.m, in)
	p[0], p[1], p[2] = out.AtVec(0), out.AtVec(1), out.AtVec(2)
	return pixels
}

// CountPixels increments meta["pixels"] when meta is a pipeline.Meta.
var CountPixels = pipeline.PixelFunc(func(pixels px, meta any) px {
	if m, ok := meta.(pipeline.Meta); ok {
		n, _ := m["pixels"].(int)
		m["pixels"] = n + 1
	}
	return pixels
})
