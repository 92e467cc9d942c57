package gmm

import (
	"math"

	"github.com/TIANLI0/LayerCut/utils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
)

// KMeans 硬聚类器，k-means++ 选初始中心后做 Lloyd 迭代
type KMeans struct {
	K             int
	MaxIterations int
	Workers       int
	Src           rand.Source
}

// Cluster 返回每个样本的簇编号和最终中心；重复中心的簇可能为空
func (km *KMeans) Cluster(samples [][]float64) ([]int, [][]float64) {
	n := len(samples)
	labels := make([]int, n)
	if n == 0 || km.K <= 0 {
		return labels, nil
	}
	dim := len(samples[0])
	maxIter := km.MaxIterations
	if maxIter <= 0 {
		maxIter = 10
	}

	centers := km.seed(samples)
	for i := range labels {
		labels[i] = -1
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := make([]bool, utils.Partitions(n, km.Workers))
		utils.ParallelParts(n, km.Workers, func(part, start, end int) {
			for i := start; i < end; i++ {
				c := nearestCenter(samples[i], centers)
				if c != labels[i] {
					labels[i] = c
					changed[part] = true
				}
			}
		})

		moved := false
		for _, c := range changed {
			moved = moved || c
		}
		if !moved {
			break
		}

		sums := make([][]float64, km.K)
		counts := make([]int, km.K)
		for i := range sums {
			sums[i] = make([]float64, dim)
		}
		for i, l := range labels {
			floats.Add(sums[l], samples[i])
			counts[l]++
		}
		for i := range centers {
			if counts[i] == 0 {
				continue
			}
			floats.ScaleTo(centers[i], 1/float64(counts[i]), sums[i])
		}
	}
	return labels, centers
}

// seed 按 D^2 加权抽样选择初始中心
func (km *KMeans) seed(samples [][]float64) [][]float64 {
	src := km.Src
	if src == nil {
		src = rand.NewSource(1)
	}
	rng := rand.New(src)

	n := len(samples)
	centers := make([][]float64, 0, km.K)
	first := make([]float64, len(samples[0]))
	copy(first, samples[rng.Intn(n)])
	centers = append(centers, first)

	dist := make([]float64, n)
	for i, s := range samples {
		dist[i] = sqDistance(s, first)
	}

	for len(centers) < km.K {
		total := floats.Sum(dist)
		next := make([]float64, len(first))
		if total <= 0 {
			copy(next, centers[len(centers)-1])
			centers = append(centers, next)
			continue
		}
		target := rng.Float64() * total
		pick := -1
		var acc float64
		for i, d := range dist {
			if d <= 0 {
				continue
			}
			pick = i
			acc += d
			if acc >= target {
				break
			}
		}
		copy(next, samples[pick])
		centers = append(centers, next)
		for i, s := range samples {
			if d := sqDistance(s, next); d < dist[i] {
				dist[i] = d
			}
		}
	}
	return centers
}

func nearestCenter(x []float64, centers [][]float64) int {
	best := 0
	minDist := math.MaxFloat64
	for i, c := range centers {
		if d := sqDistance(x, c); d < minDist {
			minDist = d
			best = i
		}
	}
	return best
}

func sqDistance(a, b []float64) float64 {
	var d float64
	for i := range a {
		v := a[i] - b[i]
		d += v * v
	}
	return d
}
