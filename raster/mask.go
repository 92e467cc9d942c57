package raster

import (
	"image"
)

// Label 像素的前景/背景标签
type Label uint8

const (
	Background Label = 0
	Foreground Label = 1
)

// Opposite 返回另一侧标签
func (l Label) Opposite() Label {
	return 1 - l
}

func (l Label) String() string {
	if l == Foreground {
		return "foreground"
	}
	return "background"
}

// Rect 初始前景矩形，像素严格位于四条边内部时才算前景
type Rect struct {
	XMin int `json:"xmin"`
	YMin int `json:"ymin"`
	XMax int `json:"xmax"`
	YMax int `json:"ymax"`
}

// Contains 判断 (x, y) 是否严格在矩形内部
func (r Rect) Contains(x, y int) bool {
	return x > r.XMin && x < r.XMax && y > r.YMin && y < r.YMax
}

// Scale 按比例缩放矩形坐标
func (r Rect) Scale(s float64) Rect {
	return Rect{
		XMin: int(float64(r.XMin) * s),
		YMin: int(float64(r.YMin) * s),
		XMax: int(float64(r.XMax) * s),
		YMax: int(float64(r.YMax) * s),
	}
}

// FromRectangle 由 image.Rectangle 构造，使矩形内的全部像素成为前景
func FromRectangle(r image.Rectangle) Rect {
	return Rect{XMin: r.Min.X - 1, YMin: r.Min.Y - 1, XMax: r.Max.X, YMax: r.Max.Y}
}

// Mask 与图像同尺寸的标签数组
type Mask struct {
	Width  int
	Height int
	Labels []Label
}

// NewMask 创建全背景掩码
func NewMask(width, height int) *Mask {
	return &Mask{Width: width, Height: height, Labels: make([]Label, width*height)}
}

// MaskFromRect 根据矩形生成初始掩码
func MaskFromRect(width, height int, r Rect) *Mask {
	m := NewMask(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if r.Contains(x, y) {
				m.Labels[y*width+x] = Foreground
			}
		}
	}
	return m
}

// At 返回 (x, y) 的标签
func (m *Mask) At(x, y int) Label {
	return m.Labels[y*m.Width+x]
}

// Count 统计指定标签的像素数
func (m *Mask) Count(l Label) int {
	n := 0
	for _, v := range m.Labels {
		if v == l {
			n++
		}
	}
	return n
}

// Equal 判断两个掩码是否完全一致
func (m *Mask) Equal(o *Mask) bool {
	if o == nil || m.Width != o.Width || m.Height != o.Height {
		return false
	}
	for i, v := range m.Labels {
		if o.Labels[i] != v {
			return false
		}
	}
	return true
}

// Clone 深拷贝
func (m *Mask) Clone() *Mask {
	c := &Mask{Width: m.Width, Height: m.Height, Labels: make([]Label, len(m.Labels))}
	copy(c.Labels, m.Labels)
	return c
}

// Bytes 前景写为 on，背景写为 0
func (m *Mask) Bytes(on byte) []byte {
	out := make([]byte, len(m.Labels))
	for i, v := range m.Labels {
		if v == Foreground {
			out[i] = on
		}
	}
	return out
}

// Gray 转换为 8 位灰度图，前景为 255
func (m *Mask) Gray() *image.Gray {
	g := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	copy(g.Pix, m.Bytes(255))
	return g
}
