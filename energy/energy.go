// Package energy 组合两个颜色模型与平滑图，计算标注的一元项与二元项能量
package energy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/TIANLI0/LayerCut/gmm"
	"github.com/TIANLI0/LayerCut/raster"
	"github.com/TIANLI0/LayerCut/smoothness"
	"github.com/TIANLI0/LayerCut/utils"
)

// DefaultGamma 平滑项相对数据项的权重
const DefaultGamma = 50.0

// minWeight 避免零权重分量产生无穷大的 -log(w)
const minWeight = 1e-12

// Model 能量模型，gamma 与平滑图在构造时给定
type Model struct {
	img     *raster.Image
	graph   *smoothness.Graph
	models  [2]*gmm.Mixture
	gamma   float64
	workers int
}

// New 创建能量模型；background 与 foreground 分别对应 raster.Background 与 raster.Foreground
func New(img *raster.Image, graph *smoothness.Graph, background, foreground *gmm.Mixture, gamma float64, workers int) (*Model, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if graph == nil || graph.Len() != img.Len() {
		return nil, fmt.Errorf("smoothness graph does not match image size")
	}
	if background == nil || foreground == nil {
		return nil, fmt.Errorf("both colour models are required")
	}
	if gamma < 0 || math.IsNaN(gamma) || math.IsInf(gamma, 0) {
		return nil, fmt.Errorf("invalid gamma %v", gamma)
	}
	return &Model{
		img:     img,
		graph:   graph,
		models:  [2]*gmm.Mixture{background, foreground},
		gamma:   gamma,
		workers: workers,
	}, nil
}

// Mixture 返回标签对应的颜色模型
func (m *Model) Mixture(l raster.Label) *gmm.Mixture {
	return m.models[l]
}

// Gamma 平滑项权重
func (m *Model) Gamma() float64 {
	return m.gamma
}

// Graph 平滑图
func (m *Model) Graph() *smoothness.Graph {
	return m.graph
}

// Unary 像素 p 以分量 k 标为 l 的代价：-log(w) + 0.5*log(det) + 马氏距离项
func (m *Model) Unary(l raster.Label, k, p int) float64 {
	mix := m.models[l]
	w := mix.Weight(k)
	if w < minWeight {
		w = minWeight
	}
	c := mix.Component(k)
	return -math.Log(w) + 0.5*c.LogDet() + c.ScaledLogDensity(m.img.At(p))
}

// Pairwise 当前标注下 p、q 的平滑代价，标签相同为 0
func (m *Model) Pairwise(mask *raster.Mask, p, q int) float64 {
	if mask.Labels[p] == mask.Labels[q] {
		return 0
	}
	return m.LinkCost(p, q)
}

// LinkCost p、q 标签不同时付出的代价 gamma*weight，即最小割中的边容量
func (m *Model) LinkCost(p, q int) float64 {
	w, ok := m.graph.Weight(p, q)
	if !ok {
		return 0
	}
	return m.gamma * w
}

// Total 全部一元项与每个无序邻居对的二元项之和，用于收敛诊断
func (m *Model) Total(mask *raster.Mask, components []int) float64 {
	unary := make([]float64, m.img.Len())
	utils.Parallel(len(unary), m.workers, func(start, end int) {
		for p := start; p < end; p++ {
			unary[p] = m.Unary(mask.Labels[p], components[p], p)
		}
	})

	var pairwise float64
	m.graph.Edges(func(p, q int, w float64) {
		if mask.Labels[p] != mask.Labels[q] {
			pairwise += m.gamma * w
		}
	})
	return floats.Sum(unary) + pairwise
}
