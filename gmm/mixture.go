package gmm

import (
	"math"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// ErrNoSamples 初始化或重拟合时没有任何样本
var ErrNoSamples = errors.New("gmm: no samples")

// ErrDimension 样本维度与模型不符
var ErrDimension = errors.New("gmm: sample dimension mismatch")

// Mixture K 个加权高斯分量组成的混合模型
type Mixture struct {
	dim        int
	reg        float64
	workers    int
	src        rand.Source
	components []*Component
	weights    []float64
	ready      bool
}

// Option 混合模型选项
type Option func(*Mixture)

// WithRegularization 设置协方差正则项
func WithRegularization(reg float64) Option {
	return func(m *Mixture) {
		if reg > 0 {
			m.reg = reg
		}
	}
}

// WithSource 设置 k-means 初始化的随机源
func WithSource(src rand.Source) Option {
	return func(m *Mixture) { m.src = src }
}

// WithWorkers 设置 k-means 分配阶段的并发数
func WithWorkers(n int) Option {
	return func(m *Mixture) { m.workers = n }
}

// NewMixture 创建 k 个分量、dim 维的混合模型，初始化前处于惰性状态
func NewMixture(k, dim int, opts ...Option) *Mixture {
	m := &Mixture{
		dim: dim,
		reg: DefaultRegularization,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.components = make([]*Component, k)
	m.weights = make([]float64, k)
	for i := range m.components {
		m.components[i] = NewComponent(dim, m.reg)
		m.weights[i] = 1 / float64(k)
	}
	return m
}

// FitReport 一次拟合中各分量的状态统计
type FitReport struct {
	Conditions []Condition
}

// Count 统计处于指定状态的分量数
func (r FitReport) Count(c Condition) int {
	n := 0
	for _, v := range r.Conditions {
		if v == c {
			n++
		}
	}
	return n
}

// Initialize 用 k-means 对样本聚类，每簇拟合一个分量，权重为簇占比
func (m *Mixture) Initialize(samples [][]float64) (FitReport, error) {
	if len(samples) == 0 {
		m.ready = false
		return FitReport{}, ErrNoSamples
	}
	if err := m.checkDim(samples); err != nil {
		return FitReport{}, err
	}

	km := &KMeans{K: m.K(), Workers: m.workers, Src: m.src}
	labels, _ := km.Cluster(samples)
	return m.Refit(samples, labels)
}

// Refit 按分量编号重新拟合；没有样本的分量保留旧参数且权重为零
func (m *Mixture) Refit(samples [][]float64, assignments []int) (FitReport, error) {
	if len(samples) != len(assignments) {
		return FitReport{}, errors.Errorf("gmm: %d samples but %d assignments", len(samples), len(assignments))
	}
	if err := m.checkDim(samples); err != nil {
		return FitReport{}, err
	}
	stats := NewStatsSet(m.K(), m.dim)
	for i, k := range assignments {
		if k < 0 || k >= m.K() {
			continue
		}
		stats[k].Add(samples[i])
	}
	return m.RefitStats(stats)
}

// RefitStats 由每个分量的累加统计量重新拟合
func (m *Mixture) RefitStats(stats []*Stats) (FitReport, error) {
	if len(stats) != m.K() {
		return FitReport{}, errors.Errorf("gmm: %d stats for %d components", len(stats), m.K())
	}
	total := 0
	for _, st := range stats {
		total += st.Count
	}
	if total == 0 {
		return FitReport{}, ErrNoSamples
	}

	report := FitReport{Conditions: make([]Condition, m.K())}
	for k, st := range stats {
		report.Conditions[k] = m.components[k].FitStats(st)
		m.weights[k] = float64(st.Count) / float64(total)
	}
	m.ready = true
	return report, nil
}

// BestComponent 返回密度最大的分量，并列取最小编号；零权重分量不参与
func (m *Mixture) BestComponent(x []float64) int {
	best := -1
	bestLog := math.Inf(-1)
	for k, c := range m.components {
		if m.weights[k] <= 0 {
			continue
		}
		if l := c.LogDensity(x); best < 0 || l > bestLog {
			best = k
			bestLog = l
		}
	}
	if best < 0 {
		return 0
	}
	return best
}

// MixtureDensity 加权的分量密度之和
func (m *Mixture) MixtureDensity(x []float64) float64 {
	var p float64
	for k, c := range m.components {
		if m.weights[k] <= 0 {
			continue
		}
		p += m.weights[k] * c.Density(x)
	}
	return p
}

// K 分量数
func (m *Mixture) K() int {
	return len(m.components)
}

// Dim 颜色维度
func (m *Mixture) Dim() int {
	return m.dim
}

// Ready 是否已由样本拟合
func (m *Mixture) Ready() bool {
	return m.ready
}

// Weight 第 k 个分量的权重
func (m *Mixture) Weight(k int) float64 {
	return m.weights[k]
}

// Weights 权重副本
func (m *Mixture) Weights() []float64 {
	out := make([]float64, len(m.weights))
	copy(out, m.weights)
	return out
}

// Component 第 k 个分量
func (m *Mixture) Component(k int) *Component {
	return m.components[k]
}

func (m *Mixture) checkDim(samples [][]float64) error {
	for i, s := range samples {
		if len(s) != m.dim {
			return errors.Wrapf(ErrDimension, "sample %d has %d channels, want %d", i, len(s), m.dim)
		}
	}
	return nil
}
