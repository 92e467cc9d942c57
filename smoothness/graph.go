// Package smoothness 计算像素与其 4/8 邻域之间的相似度权重
package smoothness

import (
	"fmt"
	"math"

	"github.com/TIANLI0/LayerCut/raster"
	"github.com/TIANLI0/LayerCut/utils"
)

// Connectivity 邻域连通性
type Connectivity int

const (
	Four  Connectivity = 4
	Eight Connectivity = 8
)

// Valid 是否为受支持的连通性
func (c Connectivity) Valid() bool {
	return c == Four || c == Eight
}

type offset struct{ dx, dy int }

// 只存前向偏移，每个无序邻居对恰好出现一次
var (
	forwardFour  = []offset{{1, 0}, {0, 1}}
	forwardEight = []offset{{1, 0}, {-1, 1}, {0, 1}, {1, 1}}
)

func forwardOffsets(c Connectivity) []offset {
	if c == Four {
		return forwardFour
	}
	return forwardEight
}

// Graph 预计算的对称邻域权重，构建后只读，可并发读取
type Graph struct {
	width   int
	height  int
	conn    Connectivity
	beta    float64
	offsets []offset
	// weights[p*len(offsets)+i] 为 p 与 p+offsets[i] 的权重，越界位置为 NaN
	weights []float64
	edges   int
}

// ComputeBeta 由水平和垂直相邻像素的平均平方色差估计对比度尺度：
// beta = 1 / (2 * mean(||z_p - z_q||^2))。纯色图像返回 0。
func ComputeBeta(img *raster.Image) float64 {
	w, h := img.Width, img.Height
	var sum float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p := img.At(y*w + x)
			if x+1 < w {
				sum += sqDistance(p, img.At(y*w+x+1))
			}
			if y+1 < h {
				sum += sqDistance(p, img.At((y+1)*w+x))
			}
		}
	}
	pairs := 2*w*h - w - h
	if pairs <= 0 || sum <= 0 {
		return 0
	}
	return 1 / (2 * sum / float64(pairs))
}

// Build 为每个无序邻居对计算 exp(-beta * ||z_p - z_q||^2)
func Build(img *raster.Image, beta float64, conn Connectivity, workers int) (*Graph, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if !conn.Valid() {
		return nil, fmt.Errorf("unsupported connectivity %d", conn)
	}
	if beta < 0 || math.IsNaN(beta) || math.IsInf(beta, 0) {
		return nil, fmt.Errorf("invalid beta %v", beta)
	}

	offs := forwardOffsets(conn)
	g := &Graph{
		width:   img.Width,
		height:  img.Height,
		conn:    conn,
		beta:    beta,
		offsets: offs,
		weights: make([]float64, img.Len()*len(offs)),
	}

	utils.Parallel(img.Height, workers, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < g.width; x++ {
				p := y*g.width + x
				zp := img.At(p)
				for i, o := range offs {
					nx, ny := x+o.dx, y+o.dy
					slot := p*len(offs) + i
					if nx < 0 || nx >= g.width || ny >= g.height {
						g.weights[slot] = math.NaN()
						continue
					}
					g.weights[slot] = math.Exp(-beta * sqDistance(zp, img.At(ny*g.width+nx)))
				}
			}
		}
	})

	for _, v := range g.weights {
		if !math.IsNaN(v) {
			g.edges++
		}
	}
	return g, nil
}

// Weight 返回 p、q 之间的权重；不是邻居时 ok 为 false。Weight(p,q) 与 Weight(q,p) 读取同一存储
func (g *Graph) Weight(p, q int) (float64, bool) {
	if p > q {
		p, q = q, p
	}
	if p < 0 || q >= g.width*g.height {
		return 0, false
	}
	px, py := p%g.width, p/g.width
	qx, qy := q%g.width, q/g.width
	dx, dy := qx-px, qy-py
	for i, o := range g.offsets {
		if o.dx == dx && o.dy == dy {
			w := g.weights[p*len(g.offsets)+i]
			if math.IsNaN(w) {
				return 0, false
			}
			return w, true
		}
	}
	return 0, false
}

// Neighbors 遍历 p 的全部邻居（最多 8 个）
func (g *Graph) Neighbors(p int, fn func(q int, w float64)) {
	x, y := p%g.width, p/g.width
	n := len(g.offsets)
	for i, o := range g.offsets {
		if w := g.weights[p*n+i]; !math.IsNaN(w) {
			fn((y+o.dy)*g.width+x+o.dx, w)
		}
		// 反向邻居：q = p - o，权重存在 q 的槽位上
		bx, by := x-o.dx, y-o.dy
		if bx < 0 || bx >= g.width || by < 0 || by >= g.height {
			continue
		}
		q := by*g.width + bx
		if w := g.weights[q*n+i]; !math.IsNaN(w) {
			fn(q, w)
		}
	}
}

// Edges 按 p 递增顺序遍历每个无序邻居对一次，p < q
func (g *Graph) Edges(fn func(p, q int, w float64)) {
	n := len(g.offsets)
	for p := 0; p < g.width*g.height; p++ {
		x, y := p%g.width, p/g.width
		for i, o := range g.offsets {
			w := g.weights[p*n+i]
			if math.IsNaN(w) {
				continue
			}
			q := (y+o.dy)*g.width + x + o.dx
			if q < p {
				fn(q, p, w)
			} else {
				fn(p, q, w)
			}
		}
	}
}

// Beta 构建时使用的对比度参数
func (g *Graph) Beta() float64 {
	return g.beta
}

// Connectivity 邻域连通性
func (g *Graph) Connectivity() Connectivity {
	return g.conn
}

// EdgeCount 无序邻居对的数量
func (g *Graph) EdgeCount() int {
	return g.edges
}

// Len 像素数量
func (g *Graph) Len() int {
	return g.width * g.height
}

// Width 图像宽度
func (g *Graph) Width() int {
	return g.width
}

// Height 图像高度
func (g *Graph) Height() int {
	return g.height
}

func sqDistance(a, b []float64) float64 {
	var d float64
	for i := range a {
		v := a[i] - b[i]
		d += v * v
	}
	return d
}
