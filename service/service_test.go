package service

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TIANLI0/LayerCut/config"
	"github.com/TIANLI0/LayerCut/raster"
)

func testImage(w, h int) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{R: 30, G: 40, B: 50, A: 255})
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 220, G: 200, B: 40, A: 255})
		}
	}
	return img
}

func TestLoadImagePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.png")
	require.NoError(t, imaging.Save(testImage(40, 20), path))

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
}

func TestLoadImageWebP(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.webp")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, webp.Encode(f, testImage(16, 12), &webp.Options{Lossless: true}))
	require.NoError(t, f.Close())

	img, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, 16, img.Bounds().Dx())

	r, g, b, _ := img.At(8, 6).RGBA()
	assert.Equal(t, []uint32{220, 200, 40}, []uint32{r >> 8, g >> 8, b >> 8})
}

func TestLoadImageRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.jpg")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))
	_, err := LoadImage(path)
	assert.Error(t, err)
}

func TestSmartResize(t *testing.T) {
	src := testImage(400, 200)

	same, scale := smartResize(src, 800)
	assert.Equal(t, 1.0, scale)
	assert.Equal(t, 400, same.Bounds().Dx())

	small, scale := smartResize(src, 100)
	assert.Equal(t, 100, small.Bounds().Dx())
	assert.Equal(t, 50, small.Bounds().Dy())
	assert.InDelta(t, 0.25, scale, 1e-12)

	tall, _ := smartResize(testImage(100, 300), 150)
	assert.Equal(t, 150, tall.Bounds().Dy())
	assert.Equal(t, 50, tall.Bounds().Dx())
}

func TestScaleRect(t *testing.T) {
	r := scaleRect(image.Rect(10, 21, 50, 61), 0.5, 100, 100)
	assert.Equal(t, image.Rect(5, 10, 25, 31), r)

	clipped := scaleRect(image.Rect(-20, -20, 500, 500), 1, 100, 80)
	assert.Equal(t, image.Rect(0, 0, 100, 80), clipped)

	assert.True(t, scaleRect(image.Rect(200, 200, 300, 300), 1, 100, 100).Empty())
}

func TestIterationBudget(t *testing.T) {
	s := NewGrabCutService(&config.GrabCutConfig{Iterations: 10, MaxConcurrent: 1})
	assert.Equal(t, 5, s.iterationBudget(LevelSimple))
	assert.Equal(t, 10, s.iterationBudget(LevelMedium))
	assert.Equal(t, 15, s.iterationBudget(LevelComplex))
	assert.Equal(t, 15, s.iterationBudget(LevelPortrait))

	small := NewGrabCutService(&config.GrabCutConfig{Iterations: 4})
	assert.Equal(t, 3, small.iterationBudget(LevelSimple))
}

func TestCalculateConfidence(t *testing.T) {
	assert.Equal(t, 0.05, calculateConfidence(0, 10, 10))
	assert.Equal(t, 0.95, calculateConfidence(100, 10, 10))
	assert.InDelta(t, 0.3, calculateConfidence(30, 10, 10), 1e-12)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "abc", SegmentRequest{}.CacheKey("abc"))
	assert.Equal(t, "abc:max_fg", SegmentRequest{MaxForegroundOnly: true}.CacheKey("abc"))

	r1 := image.Rect(1, 2, 3, 4)
	r2 := image.Rect(1, 2, 3, 5)
	k1 := SegmentRequest{Rect: &r1}.CacheKey("abc")
	k2 := SegmentRequest{Rect: &r2}.CacheKey("abc")
	assert.NotEqual(t, k1, k2)
	assert.Len(t, k1, len("abc:")+8)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, LevelPortrait, classify(ComplexityInfo{SkinRatio: 0.3}, 0.15))
	assert.Equal(t, LevelSimple, classify(ComplexityInfo{EdgeDensity: 0.01, ColorVariance: 10}, 0.15))
	assert.Equal(t, LevelComplex, classify(ComplexityInfo{EdgeDensity: 0.2, ColorVariance: 10}, 0.15))
	assert.Equal(t, LevelMedium, classify(ComplexityInfo{EdgeDensity: 0.1, ColorVariance: 40}, 0.15))
	assert.True(t, ComplexityInfo{Level: LevelPortrait}.IsPortrait())
}

func TestMaskRoundTrip(t *testing.T) {
	mp := NewMaskProcessor()
	m := raster.MaskFromRect(6, 4, raster.Rect{XMin: 0, YMin: 0, XMax: 4, YMax: 3})

	mat, err := mp.FromLabels(m)
	require.NoError(t, err)
	defer mat.Close()
	assert.Equal(t, 6, mat.Cols())
	assert.Equal(t, 4, mat.Rows())
	assert.Equal(t, uint8(255), mat.GetUCharAt(1, 1))
	assert.Equal(t, uint8(0), mat.GetUCharAt(0, 0))

	back := mp.ToLabels(&mat)
	assert.True(t, m.Equal(back))

	box := mp.BoundingBox(&mat)
	assert.Equal(t, image.Rect(1, 1, 4, 3), box)
}
