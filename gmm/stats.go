package gmm

// Stats 单个分量的充分统计量：样本数、一阶和、外积和（上三角有效）
type Stats struct {
	Dim   int
	Count int
	Sum   []float64
	Prod  []float64
}

// NewStats 创建空统计量
func NewStats(dim int) *Stats {
	return &Stats{
		Dim:  dim,
		Sum:  make([]float64, dim),
		Prod: make([]float64, dim*dim),
	}
}

// Add 累加一个样本
func (s *Stats) Add(x []float64) {
	s.Count++
	for i := 0; i < s.Dim; i++ {
		xi := x[i]
		s.Sum[i] += xi
		row := s.Prod[i*s.Dim : (i+1)*s.Dim]
		for j := i; j < s.Dim; j++ {
			row[j] += xi * x[j]
		}
	}
}

// Merge 合并另一份统计量
func (s *Stats) Merge(o *Stats) {
	s.Count += o.Count
	for i, v := range o.Sum {
		s.Sum[i] += v
	}
	for i, v := range o.Prod {
		s.Prod[i] += v
	}
}

// NewStatsSet 为 k 个分量各创建一份统计量
func NewStatsSet(k, dim int) []*Stats {
	set := make([]*Stats, k)
	for i := range set {
		set[i] = NewStats(dim)
	}
	return set
}

// MergeSets 按分量逐一合并多份统计量，合并顺序固定
func MergeSets(k, dim int, partials [][]*Stats) []*Stats {
	out := NewStatsSet(k, dim)
	for _, part := range partials {
		for i, st := range part {
			if st != nil {
				out[i].Merge(st)
			}
		}
	}
	return out
}
