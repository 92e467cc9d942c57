package segment

import (
	"math"

	"github.com/pkg/errors"

	"github.com/TIANLI0/LayerCut/energy"
	"github.com/TIANLI0/LayerCut/maxflow"
	"github.com/TIANLI0/LayerCut/raster"
	"github.com/TIANLI0/LayerCut/utils"
)

type solverState int

const (
	solverEmpty solverState = iota
	solverBuilt
	solverSolved
)

// CutSolver 每次迭代重建的最小割求解器：Build -> Solve -> Partition。
// 源点一侧为前景，汇点一侧为背景：切断源点边的代价是标为背景的代价，切断汇点边的代价是标为前景的代价。
type CutSolver struct {
	workers int
	state   solverState
	graph   *maxflow.Graph
	width   int
	height  int
	flow    float64
}

// NewCutSolver 创建求解器
func NewCutSolver(workers int) *CutSolver {
	return &CutSolver{workers: workers}
}

// Build 按能量模型建图。components[l][p] 为像素 p 在标签 l 的颜色模型下所用的分量；
// fixed 非空时，fixed[p] 为真的像素被固定为背景
func (s *CutSolver) Build(model *energy.Model, components [2][]int, fixed []bool) error {
	if s.state != solverEmpty {
		return errors.Wrap(ErrSolverState, "build called twice")
	}
	sg := model.Graph()
	n := sg.Len()
	if len(components[raster.Background]) != n || len(components[raster.Foreground]) != n {
		return errors.Wrapf(ErrInvalidInput, "component maps do not cover %d pixels", n)
	}
	if fixed != nil && len(fixed) != n {
		return errors.Wrapf(ErrInvalidInput, "fixed map does not cover %d pixels", n)
	}
	// 权重不超过 1，hard 大于任一像素全部邻边容量之和
	hard := 1 + float64(sg.Connectivity())*model.Gamma()

	toSource := make([]float64, n)
	toSink := make([]float64, n)
	utils.Parallel(n, s.workers, func(start, end int) {
		for p := start; p < end; p++ {
			if fixed != nil && fixed[p] {
				toSink[p] = hard
				continue
			}
			bg := model.Unary(raster.Background, components[raster.Background][p], p)
			fg := model.Unary(raster.Foreground, components[raster.Foreground][p], p)
			// 一元能量可能为负，两条终端边减去同一常数不改变最小割
			shift := math.Min(bg, fg)
			toSource[p] = bg - shift
			toSink[p] = fg - shift
		}
	})

	g := maxflow.New(n, sg.EdgeCount())
	for p := 0; p < n; p++ {
		if err := g.AddTWeights(p, toSource[p], toSink[p]); err != nil {
			return errors.Wrapf(err, "terminal links of pixel %d", p)
		}
	}

	gamma := model.Gamma()
	var err error
	sg.Edges(func(p, q int, w float64) {
		if err != nil {
			return
		}
		c := gamma * w
		if e := g.AddEdge(p, q, c, c); e != nil {
			err = errors.Wrapf(e, "neighbour link %d-%d", p, q)
		}
	})
	if err != nil {
		return err
	}

	s.graph = g
	s.width = sg.Width()
	s.height = sg.Height()
	s.state = solverBuilt
	return nil
}

// Solve 计算最大流，返回流量（即最小割代价减去终端边的平移量）
func (s *CutSolver) Solve() (float64, error) {
	if s.state != solverBuilt {
		return 0, errors.Wrap(ErrSolverState, "solve requires a built graph")
	}
	flow, err := s.graph.MaxFlow()
	if err != nil {
		return 0, err
	}
	s.flow = flow
	s.state = solverSolved
	return flow, nil
}

// Partition 返回割的结果：源点一侧为前景，其余为背景
func (s *CutSolver) Partition() (*raster.Mask, error) {
	if s.state != solverSolved {
		return nil, errors.Wrap(ErrSolverState, "partition requires a solved graph")
	}
	mask := raster.NewMask(s.width, s.height)
	for p := range mask.Labels {
		if s.graph.Segment(p) == maxflow.Source {
			mask.Labels[p] = raster.Foreground
		}
	}
	return mask, nil
}

// Flow 最近一次求解的流量
func (s *CutSolver) Flow() float64 {
	return s.flow
}
