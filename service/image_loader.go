package service

import (
	"fmt"
	"image"
	"os"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// LoadImage 读取上传的图片并按 EXIF 方向摆正，不支持的格式再尝试 WebP
func LoadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}

	f, ferr := os.Open(path)
	if ferr != nil {
		return nil, fmt.Errorf("failed to open image: %w", ferr)
	}
	defer f.Close()

	if wimg, werr := webp.Decode(f); werr == nil {
		return wimg, nil
	}
	return nil, fmt.Errorf("failed to decode image: %w", err)
}

// smartResize 长边超过 maxSize 时等比缩小，返回缩放比例
func smartResize(img image.Image, maxSize int) (image.Image, float64) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	maxDim := max(width, height)
	if maxSize <= 0 || maxDim <= maxSize {
		return img, 1.0
	}

	var resized *image.NRGBA
	if width >= height {
		resized = imaging.Resize(img, maxSize, 0, imaging.Box)
	} else {
		resized = imaging.Resize(img, 0, maxSize, imaging.Box)
	}
	return resized, float64(resized.Bounds().Dx()) / float64(width)
}
