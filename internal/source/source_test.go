package source

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, dir, name string, w, h int, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(img, path))
	return path
}

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writePNG(t, dir, "first.png", 3, 2, color.NRGBA{R: 1, G: 2, B: 3, A: 255}),
		writePNG(t, dir, "second.png", 4, 4, color.NRGBA{R: 9, A: 255}),
		writePNG(t, dir, "third.png", 1, 5, color.NRGBA{B: 7, A: 255}),
	}

	images, err := NewLoader(2).Load(context.Background(), paths)
	require.NoError(t, err)
	require.Len(t, images, 3)

	assert.Equal(t, "first", images[0].Name)
	assert.Equal(t, "second", images[1].Name)
	assert.Equal(t, "third", images[2].Name)
	assert.Equal(t, 3, images[0].Image.Width)
	assert.Equal(t, 2, images[0].Image.Height)
	assert.Equal(t, []byte{1, 2, 3, 255}, images[0].Image.Data[:4])
	assert.Equal(t, 5, images[2].Image.Height)
	for _, n := range images {
		assert.NoError(t, n.Image.Validate())
	}
}

func TestLoader_Load_Missing(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writePNG(t, dir, "ok.png", 1, 1, color.NRGBA{A: 255}),
		filepath.Join(dir, "missing.png"),
	}
	_, err := NewLoader(1).Load(context.Background(), paths)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.png")
}

func TestLoader_Load_Cancelled(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", 1, 1, color.NRGBA{A: 255})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLoader(1).Load(ctx, []string{path})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSynthetic(t *testing.T) {
	a := Synthetic(3, 8, 4, 42)
	b := Synthetic(3, 8, 4, 42)
	require.Len(t, a, 3)

	names := map[string]bool{}
	for i := range a {
		assert.Equal(t, 8, a[i].Image.Width)
		assert.Equal(t, 4, a[i].Image.Height)
		assert.Len(t, a[i].Image.Data, 8*4*4)
		assert.Equal(t, a[i].Image.Data, b[i].Image.Data)
		assert.NotEmpty(t, a[i].Name)
		names[a[i].Name] = true
	}
	assert.Len(t, names, 3)
	assert.NotEqual(t, a[0].Image.Data, Synthetic(1, 8, 4, 7)[0].Image.Data)
}
