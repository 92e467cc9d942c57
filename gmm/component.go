// Package gmm 实现颜色空间上的高斯分量与高斯混合模型
package gmm

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultRegularization 协方差奇异时加到对角线上的各向同性项
const DefaultRegularization = 0.01

// maxCondition 超过该条件数的协方差视为奇异
const maxCondition = 1e12

// Condition 描述一次拟合后协方差的状态
type Condition int

const (
	// Regular 协方差本身正定
	Regular Condition = iota
	// Regularized 样本不足或协方差奇异，已加对角正则项
	Regularized
	// Clamped 正则化后仍不可逆，特征值被截断到下限
	Clamped
	// Empty 没有样本，保留原参数
	Empty
)

func (c Condition) String() string {
	switch c {
	case Regular:
		return "regular"
	case Regularized:
		return "regularized"
	case Clamped:
		return "clamped"
	case Empty:
		return "empty"
	}
	return "unknown"
}

// Component 单个多元高斯分量，缓存协方差的逆与对数行列式
type Component struct {
	dim    int
	reg    float64
	count  int
	mean   []float64
	cov    *mat.SymDense
	inv    []float64 // 行优先的 dim*dim 逆矩阵，热路径使用
	logDet float64
}

// NewComponent 创建均值为零、协方差为 reg*I 的分量
func NewComponent(dim int, reg float64) *Component {
	if reg <= 0 {
		reg = DefaultRegularization
	}
	c := &Component{
		dim:  dim,
		reg:  reg,
		mean: make([]float64, dim),
		cov:  mat.NewSymDense(dim, nil),
		inv:  make([]float64, dim*dim),
	}
	for i := 0; i < dim; i++ {
		c.cov.SetSym(i, i, reg)
	}
	c.factorize()
	return c
}

// Fit 用样本集合拟合均值与协方差
func (c *Component) Fit(samples [][]float64) Condition {
	st := NewStats(c.dim)
	for _, s := range samples {
		st.Add(s)
	}
	return c.FitStats(st)
}

// FitStats 由累加统计量拟合，协方差取最大似然估计
func (c *Component) FitStats(st *Stats) Condition {
	if st.Count == 0 {
		c.count = 0
		return Empty
	}

	n := float64(st.Count)
	for i := 0; i < c.dim; i++ {
		c.mean[i] = st.Sum[i] / n
	}
	cov := mat.NewSymDense(c.dim, nil)
	for i := 0; i < c.dim; i++ {
		for j := i; j < c.dim; j++ {
			cov.SetSym(i, j, st.Prod[i*c.dim+j]/n-c.mean[i]*c.mean[j])
		}
	}
	c.count = st.Count
	c.cov = cov

	cond := Regular
	if st.Count <= c.dim || !c.factorize() {
		for i := 0; i < c.dim; i++ {
			c.cov.SetSym(i, i, c.cov.At(i, i)+c.reg)
		}
		cond = Regularized
		if !c.factorize() {
			c.clampEigenvalues()
			cond = Clamped
		}
	}
	return cond
}

// factorize 对协方差做 Cholesky 分解并刷新缓存
func (c *Component) factorize() bool {
	var chol mat.Cholesky
	if ok := chol.Factorize(c.cov); !ok {
		return false
	}
	if chol.Cond() > maxCondition {
		return false
	}
	logDet := chol.LogDet()
	if math.IsNaN(logDet) || math.IsInf(logDet, 0) {
		return false
	}
	inv := mat.NewSymDense(c.dim, nil)
	if err := chol.InverseTo(inv); err != nil {
		return false
	}
	for i := 0; i < c.dim; i++ {
		for j := 0; j < c.dim; j++ {
			c.inv[i*c.dim+j] = inv.At(i, j)
		}
	}
	c.logDet = logDet
	return true
}

// clampEigenvalues 将特征值截断到 reg 下限后重建协方差
func (c *Component) clampEigenvalues() {
	var eig mat.EigenSym
	if ok := eig.Factorize(c.cov, true); !ok {
		c.resetIsotropic()
		return
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	for i := range values {
		if math.IsNaN(values[i]) || values[i] < c.reg {
			values[i] = c.reg
		}
	}
	rebuilt := mat.NewSymDense(c.dim, nil)
	for i := 0; i < c.dim; i++ {
		for j := i; j < c.dim; j++ {
			var v float64
			for k, lambda := range values {
				v += vecs.At(i, k) * lambda * vecs.At(j, k)
			}
			rebuilt.SetSym(i, j, v)
		}
	}
	c.cov = rebuilt
	if !c.factorize() {
		c.resetIsotropic()
	}
}

func (c *Component) resetIsotropic() {
	c.cov = mat.NewSymDense(c.dim, nil)
	for i := 0; i < c.dim; i++ {
		c.cov.SetSym(i, i, c.reg)
	}
	c.factorize()
}

// ScaledLogDensity 返回 0.5 * (x-mean)^T * covInv * (x-mean)，即能量中的马氏距离项
func (c *Component) ScaledLogDensity(x []float64) float64 {
	var d [8]float64
	diff := d[:0]
	if c.dim > len(d) {
		diff = make([]float64, 0, c.dim)
	}
	for i := 0; i < c.dim; i++ {
		diff = append(diff, x[i]-c.mean[i])
	}
	var q float64
	for i := 0; i < c.dim; i++ {
		row := c.inv[i*c.dim : (i+1)*c.dim]
		var s float64
		for j, v := range row {
			s += v * diff[j]
		}
		q += diff[i] * s
	}
	return 0.5 * q
}

// LogDensity 完整的对数概率密度
func (c *Component) LogDensity(x []float64) float64 {
	return -0.5*float64(c.dim)*math.Log(2*math.Pi) - 0.5*c.logDet - c.ScaledLogDensity(x)
}

// Density 概率密度，仅用于分量选择和混合密度
func (c *Component) Density(x []float64) float64 {
	return math.Exp(c.LogDensity(x))
}

// Mean 返回均值副本
func (c *Component) Mean() []float64 {
	out := make([]float64, c.dim)
	copy(out, c.mean)
	return out
}

// Covariance 返回协方差副本
func (c *Component) Covariance() *mat.SymDense {
	out := mat.NewSymDense(c.dim, nil)
	out.CopySym(c.cov)
	return out
}

// LogDet 协方差的对数行列式
func (c *Component) LogDet() float64 {
	return c.logDet
}

// Det 协方差行列式
func (c *Component) Det() float64 {
	return math.Exp(c.logDet)
}

// Count 最近一次拟合使用的样本数
func (c *Component) Count() int {
	return c.count
}

// Dim 颜色维度
func (c *Component) Dim() int {
	return c.dim
}
