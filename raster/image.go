// Package raster 定义分割引擎使用的像素数组、标签掩码和初始矩形
package raster

import (
	"fmt"
	"image"
)

// Image 行优先存储的多通道浮点像素数组
type Image struct {
	Width    int
	Height   int
	Channels int
	Pix      []float64
}

// NewImage 创建一个全零图像
func NewImage(width, height, channels int) *Image {
	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float64, width*height*channels),
	}
}

// FromImage 将标准库图像转换为 RGB 三通道像素数组（0..255）
func FromImage(img image.Image) *Image {
	b := img.Bounds()
	out := NewImage(b.Dx(), b.Dy(), 3)
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out.Pix[i] = float64(r >> 8)
			out.Pix[i+1] = float64(g >> 8)
			out.Pix[i+2] = float64(bl >> 8)
			i += 3
		}
	}
	return out
}

// Validate 检查尺寸与数据长度是否一致
func (m *Image) Validate() error {
	if m == nil {
		return fmt.Errorf("image is nil")
	}
	if m.Width <= 0 || m.Height <= 0 || m.Channels <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%dx%d", m.Width, m.Height, m.Channels)
	}
	if len(m.Pix) != m.Width*m.Height*m.Channels {
		return fmt.Errorf("pixel data length %d does not match %dx%dx%d", len(m.Pix), m.Width, m.Height, m.Channels)
	}
	return nil
}

// Len 返回像素数量
func (m *Image) Len() int {
	return m.Width * m.Height
}

// At 返回线性索引 p 处像素的颜色向量（共享底层数据）
func (m *Image) At(p int) []float64 {
	off := p * m.Channels
	return m.Pix[off : off+m.Channels : off+m.Channels]
}

// Index 将 (x, y) 转换为线性索引
func (m *Image) Index(x, y int) int {
	return y*m.Width + x
}

// Set 设置 (x, y) 处的颜色
func (m *Image) Set(x, y int, c ...float64) {
	copy(m.At(m.Index(x, y)), c)
}

// BGRBytes 将前三个通道按 BGR 顺序打包为 8 位字节，供 OpenCV 使用
func (m *Image) BGRBytes() []byte {
	out := make([]byte, m.Len()*3)
	for p := 0; p < m.Len(); p++ {
		px := m.At(p)
		for c := 0; c < 3 && c < m.Channels; c++ {
			out[p*3+2-c] = clampByte(px[c])
		}
	}
	return out
}

func clampByte(v float64) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return byte(v + 0.5)
}
