package pipeline

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func double(pixels []PixelValue, _ any) []PixelValue {
	for c := range pixels[0] {
		pixels[0][c] *= 2
	}
	return pixels
}

func TestNew_RejectsEmpty(t *testing.T) {
	_, err := New(Pixel, nil)
	assert.ErrorIs(t, err, ErrNoOperations)
}

func TestNew_GranularityMismatch(t *testing.T) {
	tests := []struct {
		name string
		g    Granularity
		op   Operation
	}{
		{"image op in pixel pipeline", Pixel, ImageFunc(func(i []*image.NRGBA, _ any) []*image.NRGBA { return i })},
		{"pixel op in image pipeline", Image, PixelFunc(double)},
		{"not an operation", Pixel, 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.g, nil, tt.op)
			assert.ErrorIs(t, err, ErrGranularityMismatch)
		})
	}
}

func TestRunPixels_ThreadsStagesInOrder(t *testing.T) {
	var order []string
	first := PixelFunc(func(px []PixelValue, _ any) []PixelValue {
		order = append(order, "first")
		return double(px, nil)
	})
	second := PixelFunc(func(px []PixelValue, _ any) []PixelValue {
		order = append(order, "second")
		return []PixelValue{{px[0][0] + 1, px[0][1] + 1, px[0][2] + 1, px[0][3] + 1}}
	})

	p, err := New(Pixel, nil, first, second)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Len())
	assert.False(t, p.ImageOps())

	out := p.RunPixels([]PixelValue{{1, 2, 3, 4}}, nil)
	assert.Equal(t, []PixelValue{{3, 5, 7, 9}}, out)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestRunPixels_PassesLib(t *testing.T) {
	lib := Lib{"sum": func(a ...float64) float64 { return a[0] + a[1] }}
	op := LibPixelFunc(func(px []PixelValue, _ any, lib Lib) []PixelValue {
		px[0][0] = lib.MustCall("sum", px[0][0], px[0][1])
		return px
	})
	p, err := New(Pixel, lib, op)
	require.NoError(t, err)

	out := p.RunPixels([]PixelValue{{10, 2, 0, 0}}, nil)
	assert.Equal(t, 12.0, out[0][0])
}

func TestLib_CallUnknown(t *testing.T) {
	_, err := Lib{}.Call("nope")
	assert.ErrorIs(t, err, ErrUnknownLibFunc)
	assert.Panics(t, func() { Lib{}.MustCall("nope") })
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("image")
	require.NoError(t, err)
	assert.Equal(t, Image, g)
	assert.Equal(t, "image", g.String())

	g, err = ParseGranularity("")
	require.NoError(t, err)
	assert.Equal(t, Pixel, g)

	_, err = ParseGranularity("voxel")
	assert.Error(t, err)
}

func TestCloneMeta(t *testing.T) {
	m := Meta{"count": 1}
	c := CloneMeta(m).(Meta)
	c["count"] = 2
	assert.Equal(t, 1, m["count"])

	nested := Meta{"tags": map[string]any{"a": 1}}
	cn := CloneMeta(nested).(Meta)
	cn["tags"].(map[string]any)["a"] = 2
	assert.Equal(t, 1, nested["tags"].(map[string]any)["a"])

	plainMap := map[string]any{"count": 0, "list": []int{1, 2}}
	cm := CloneMeta(plainMap).(map[string]any)
	cm["count"] = 5
	cm["list"].([]int)[0] = 9
	assert.Equal(t, 0, plainMap["count"])
	assert.Equal(t, []int{1, 2}, plainMap["list"])

	type counter struct{ N int }
	ptr := &counter{N: 1}
	cp := CloneMeta(ptr).(*counter)
	assert.NotSame(t, ptr, cp)
	cp.N = 2
	assert.Equal(t, 1, ptr.N)

	assert.Equal(t, "label", CloneMeta("label"))
	assert.Nil(t, CloneMeta(nil))
}

func TestMeta_Float(t *testing.T) {
	m := Meta{"a": 1, "b": 2.5, "c": "x"}
	v, ok := m.Float("a")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)
	v, ok = m.Float("b")
	assert.True(t, ok)
	assert.Equal(t, 2.5, v)
	_, ok = m.Float("c")
	assert.False(t, ok)
}
