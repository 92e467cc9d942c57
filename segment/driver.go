// Package segment 迭代 GrabCut：交替拟合前景/背景颜色模型与求解最小割
package segment

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"

	"github.com/TIANLI0/LayerCut/energy"
	"github.com/TIANLI0/LayerCut/gmm"
	"github.com/TIANLI0/LayerCut/raster"
	"github.com/TIANLI0/LayerCut/smoothness"
	"github.com/TIANLI0/LayerCut/utils"
)

// State 分割器的运行状态
type State int

const (
	Initialized State = iota
	Running
	Converged
	IterationLimitReached
	Canceled
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Converged:
		return "converged"
	case IterationLimitReached:
		return "iteration_limit_reached"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result 一次分割的结果
type Result struct {
	Mask       *raster.Mask
	Iterations int
	// Energies 每次迭代后的总能量
	Energies []float64
	State    State
	Beta     float64
	// Flow 最后一次最小割的流量
	Flow     float64
	Duration time.Duration
}

// Converged 是否因标注稳定而结束
func (r *Result) Converged() bool {
	return r.State == Converged
}

// FinalEnergy 最后一次迭代的总能量，未迭代时为 0
func (r *Result) FinalEnergy() float64 {
	if len(r.Energies) == 0 {
		return 0
	}
	return r.Energies[len(r.Energies)-1]
}

// Segmenter 持有一次分割的全部状态；同一实例不能并发使用
type Segmenter struct {
	opts  Options
	log   *zap.Logger
	img   *raster.Image
	graph *smoothness.Graph
	model *energy.Model

	mixtures   [2]*gmm.Mixture
	components [2][]int
	mask       *raster.Mask
	fixed      []bool

	state     State
	iteration int
	energies  []float64
	flow      float64
}

// New 以矩形初始化：矩形内为前景，其余为背景
func New(img *raster.Image, rect raster.Rect, opts Options) (*Segmenter, error) {
	if err := img.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	return NewFromMask(img, raster.MaskFromRect(img.Width, img.Height, rect), opts)
}

// NewFromMask 以给定标注初始化，mask 会被复制
func NewFromMask(img *raster.Image, mask *raster.Mask, opts Options) (*Segmenter, error) {
	if err := opts.validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	if err := img.Validate(); err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	if mask == nil || mask.Width != img.Width || mask.Height != img.Height || len(mask.Labels) != img.Len() {
		return nil, errors.Wrap(ErrInvalidInput, "mask does not match image size")
	}

	fg := mask.Count(raster.Foreground)
	bg := img.Len() - fg
	if fg == 0 || bg == 0 {
		return nil, errors.Wrapf(ErrEmptyClass, "foreground=%d background=%d", fg, bg)
	}

	s := &Segmenter{
		opts:  opts,
		log:   opts.Logger,
		img:   img,
		mask:  mask.Clone(),
		state: Initialized,
	}
	if opts.FixBackground {
		s.fixed = make([]bool, img.Len())
		for p, l := range mask.Labels {
			s.fixed[p] = l == raster.Background
		}
	}

	beta := smoothness.ComputeBeta(img)
	graph, err := smoothness.Build(img, beta, opts.Connectivity, opts.Workers)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	s.graph = graph

	for _, l := range []raster.Label{raster.Background, raster.Foreground} {
		mix := gmm.NewMixture(opts.Components, img.Channels,
			gmm.WithRegularization(opts.Regularization),
			gmm.WithSource(rand.NewSource(opts.Seed+uint64(l))),
			gmm.WithWorkers(opts.Workers),
		)
		report, err := mix.Initialize(s.samples(l))
		if err != nil {
			return nil, errors.Wrapf(err, "initialize %s model", l)
		}
		s.logReport(l, report)
		s.mixtures[l] = mix
		s.components[l] = make([]int, img.Len())
	}

	model, err := energy.New(img, graph, s.mixtures[raster.Background], s.mixtures[raster.Foreground], opts.Gamma, opts.Workers)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidInput, err.Error())
	}
	s.model = model

	s.log.Debug("segmenter initialized",
		zap.Int("width", img.Width),
		zap.Int("height", img.Height),
		zap.Int("foreground", fg),
		zap.Int("background", bg),
		zap.Float64("beta", beta),
		zap.Int("edges", graph.EdgeCount()),
	)
	return s, nil
}

// samples 返回标签 l 的全部像素颜色（共享图像内存）
func (s *Segmenter) samples(l raster.Label) [][]float64 {
	out := make([][]float64, 0, s.mask.Count(l))
	for p, v := range s.mask.Labels {
		if v == l {
			out = append(out, s.img.At(p))
		}
	}
	return out
}

// Step 执行一次迭代，返回标注是否发生变化
func (s *Segmenter) Step() (bool, error) {
	s.state = Running
	s.iteration++

	s.assignComponents()
	if err := s.refit(); err != nil {
		return false, err
	}

	solver := NewCutSolver(s.opts.Workers)
	if err := solver.Build(s.model, s.components, s.fixed); err != nil {
		return false, err
	}
	flow, err := solver.Solve()
	if err != nil {
		return false, err
	}
	next, err := solver.Partition()
	if err != nil {
		return false, err
	}

	changed := !next.Equal(s.mask)
	s.mask = next
	s.flow = flow

	e := s.model.Total(s.mask, s.currentComponents())
	s.energies = append(s.energies, e)

	s.log.Debug("iteration finished",
		zap.Int("iteration", s.iteration),
		zap.Float64("energy", e),
		zap.Float64("flow", flow),
		zap.Int("foreground", s.mask.Count(raster.Foreground)),
		zap.Bool("changed", changed),
	)
	return changed, nil
}

// assignComponents 为每个像素在两个颜色模型下各选出最可能的分量
func (s *Segmenter) assignComponents() {
	bg, fg := s.mixtures[raster.Background], s.mixtures[raster.Foreground]
	utils.Parallel(s.img.Len(), s.opts.Workers, func(start, end int) {
		for p := start; p < end; p++ {
			x := s.img.At(p)
			s.components[raster.Background][p] = bg.BestComponent(x)
			s.components[raster.Foreground][p] = fg.BestComponent(x)
		}
	})
}

// refit 分区累加统计量后按分区顺序合并，结果与并发数无关
func (s *Segmenter) refit() error {
	k, dim := s.opts.Components, s.img.Channels
	n := s.img.Len()
	parts := utils.Partitions(n, s.opts.Workers)

	partials := [2][][]*gmm.Stats{
		make([][]*gmm.Stats, parts),
		make([][]*gmm.Stats, parts),
	}
	utils.ParallelParts(n, s.opts.Workers, func(part, start, end int) {
		local := [2][]*gmm.Stats{gmm.NewStatsSet(k, dim), gmm.NewStatsSet(k, dim)}
		for p := start; p < end; p++ {
			l := s.mask.Labels[p]
			local[l][s.components[l][p]].Add(s.img.At(p))
		}
		partials[raster.Background][part] = local[raster.Background]
		partials[raster.Foreground][part] = local[raster.Foreground]
	})

	for _, l := range []raster.Label{raster.Background, raster.Foreground} {
		report, err := s.mixtures[l].RefitStats(gmm.MergeSets(k, dim, partials[l]))
		if errors.Is(err, gmm.ErrNoSamples) {
			s.log.Warn("label has no pixels, keeping previous model",
				zap.Stringer("label", l),
				zap.Int("iteration", s.iteration),
			)
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "refit %s model", l)
		}
		s.logReport(l, report)
	}
	return nil
}

func (s *Segmenter) logReport(l raster.Label, report gmm.FitReport) {
	regularized := report.Count(gmm.Regularized)
	clamped := report.Count(gmm.Clamped)
	empty := report.Count(gmm.Empty)
	if regularized+clamped+empty == 0 {
		return
	}
	s.log.Debug("degenerate components",
		zap.Stringer("label", l),
		zap.Int("iteration", s.iteration),
		zap.Int("regularized", regularized),
		zap.Int("clamped", clamped),
		zap.Int("empty", empty),
	)
}

// currentComponents 每个像素在其当前标签下使用的分量
func (s *Segmenter) currentComponents() []int {
	out := make([]int, len(s.mask.Labels))
	for p, l := range s.mask.Labels {
		out[p] = s.components[l][p]
	}
	return out
}

// Run 迭代到标注稳定或达到迭代上限；ctx 仅在两次迭代之间检查
func (s *Segmenter) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	for s.iteration < s.opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			s.state = Canceled
			s.log.Info("segmentation canceled", zap.Int("iterations", s.iteration))
			return s.result(time.Since(start)), err
		}
		changed, err := s.Step()
		if err != nil {
			return nil, errors.Wrapf(err, "iteration %d", s.iteration)
		}
		if !changed && s.opts.EarlyStop {
			s.state = Converged
			break
		}
	}
	if s.state != Converged {
		s.state = IterationLimitReached
	}

	res := s.result(time.Since(start))
	s.log.Info("segmentation finished",
		zap.Stringer("state", res.State),
		zap.Int("iterations", res.Iterations),
		zap.Float64("energy", res.FinalEnergy()),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (s *Segmenter) result(d time.Duration) *Result {
	energies := make([]float64, len(s.energies))
	copy(energies, s.energies)
	return &Result{
		Mask:       s.mask.Clone(),
		Iterations: s.iteration,
		Energies:   energies,
		State:      s.state,
		Beta:       s.graph.Beta(),
		Flow:       s.flow,
		Duration:   d,
	}
}

// Mask 当前标注的副本
func (s *Segmenter) Mask() *raster.Mask {
	return s.mask.Clone()
}

// State 当前状态
func (s *Segmenter) State() State {
	return s.state
}

// Iterations 已完成的迭代次数
func (s *Segmenter) Iterations() int {
	return s.iteration
}

// Energies 每次迭代后的总能量
func (s *Segmenter) Energies() []float64 {
	out := make([]float64, len(s.energies))
	copy(out, s.energies)
	return out
}

// Mixture 标签对应的颜色模型
func (s *Segmenter) Mixture(l raster.Label) *gmm.Mixture {
	return s.mixtures[l]
}

// Run 便捷入口：以矩形初始化并运行到结束
func Run(ctx context.Context, img *raster.Image, rect raster.Rect, opts Options) (*Result, error) {
	s, err := New(img, rect, opts)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}
