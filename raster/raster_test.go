package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRectIsStrict(t *testing.T) {
	r := Rect{XMin: 0, YMin: 0, XMax: 3, YMax: 3}
	assert.True(t, r.Contains(1, 1))
	assert.True(t, r.Contains(2, 2))
	assert.False(t, r.Contains(0, 1))
	assert.False(t, r.Contains(1, 3))
	assert.False(t, r.Contains(3, 2))
}

func TestMaskFromRect(t *testing.T) {
	m := MaskFromRect(4, 4, Rect{XMin: -1, YMin: -1, XMax: 4, YMax: 2})
	assert.Equal(t, 8, m.Count(Foreground))
	assert.Equal(t, 8, m.Count(Background))
	assert.Equal(t, Foreground, m.At(3, 1))
	assert.Equal(t, Background, m.At(0, 2))

	empty := MaskFromRect(4, 4, Rect{XMin: 1, YMin: 0, XMax: 1, YMax: 4})
	assert.Equal(t, 0, empty.Count(Foreground))
}

func TestFromRectangleCoversAllPixels(t *testing.T) {
	r := FromRectangle(image.Rect(1, 1, 3, 4))
	m := MaskFromRect(5, 5, r)
	assert.Equal(t, 2*3, m.Count(Foreground))
	assert.Equal(t, Foreground, m.At(1, 1))
	assert.Equal(t, Foreground, m.At(2, 3))
	assert.Equal(t, Background, m.At(3, 3))
}

func TestRectScale(t *testing.T) {
	r := Rect{XMin: 10, YMin: 20, XMax: 30, YMax: 41}.Scale(0.5)
	assert.Equal(t, Rect{XMin: 5, YMin: 10, XMax: 15, YMax: 20}, r)
}

func TestMaskCloneEqual(t *testing.T) {
	m := NewMask(3, 2)
	m.Labels[4] = Foreground
	c := m.Clone()
	require.True(t, m.Equal(c))

	c.Labels[0] = Foreground
	assert.False(t, m.Equal(c))
	assert.False(t, m.Equal(NewMask(2, 3)))
	assert.False(t, m.Equal(nil))
}

func TestMaskGray(t *testing.T) {
	m := NewMask(2, 2)
	m.Labels[3] = Foreground
	g := m.Gray()
	assert.Equal(t, uint8(255), g.GrayAt(1, 1).Y)
	assert.Equal(t, uint8(0), g.GrayAt(0, 0).Y)
	assert.Equal(t, []byte{0, 0, 0, 7}, m.Bytes(7))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, Background, Foreground.Opposite())
	assert.Equal(t, Foreground, Background.Opposite())
	assert.Equal(t, "foreground", Foreground.String())
}

func TestFromImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(2, 3, 4, 4))
	src.Set(2, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	src.Set(3, 3, color.RGBA{R: 200, G: 100, B: 0, A: 255})

	img := FromImage(src)
	require.NoError(t, img.Validate())
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 1, img.Height)
	assert.Equal(t, []float64{10, 20, 30}, img.At(0))
	assert.Equal(t, []float64{200, 100, 0}, img.At(1))
	assert.Equal(t, []byte{30, 20, 10, 0, 100, 200}, img.BGRBytes())
}

func TestImageValidate(t *testing.T) {
	var nilImg *Image
	assert.Error(t, nilImg.Validate())
	assert.Error(t, (&Image{Width: 2, Height: 2, Channels: 3}).Validate())
	assert.Error(t, NewImage(0, 2, 3).Validate())
	assert.NoError(t, NewImage(2, 2, 3).Validate())
}

func TestImageAtIsView(t *testing.T) {
	img := NewImage(2, 2, 3)
	img.Set(1, 1, 1, 2, 3)
	px := img.At(img.Index(1, 1))
	assert.Equal(t, []float64{1, 2, 3}, px)
	assert.Equal(t, 3, cap(px))
	px[0] = 9
	assert.Equal(t, 9.0, img.Pix[9])
}
