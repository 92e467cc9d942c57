package segment

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/TIANLI0/LayerCut/energy"
	"github.com/TIANLI0/LayerCut/gmm"
	"github.com/TIANLI0/LayerCut/smoothness"
)

// Options 一次分割运行的参数
type Options struct {
	// Components 每个颜色模型的高斯分量数
	Components int
	// Gamma 平滑项权重
	Gamma float64
	// MaxIterations EM 迭代上限
	MaxIterations int
	// Connectivity 邻域连通性，4 或 8
	Connectivity smoothness.Connectivity
	// Workers 像素级并行的 goroutine 数，<=0 时使用全部 CPU
	Workers int
	// Regularization 协方差奇异时加到对角线上的值
	Regularization float64
	// EarlyStop 标注不再变化时提前结束
	EarlyStop bool
	// FixBackground 初始标注中的背景像素在整个运行中保持背景
	FixBackground bool
	// Seed k-means 初始化的随机种子
	Seed uint64
	// Logger 为空时不输出日志
	Logger *zap.Logger
}

// DefaultOptions K=5、gamma=50、最多 100 次迭代、8 邻域
func DefaultOptions() Options {
	return Options{
		Components:     5,
		Gamma:          energy.DefaultGamma,
		MaxIterations:  100,
		Connectivity:   smoothness.Eight,
		Regularization: gmm.DefaultRegularization,
		EarlyStop:      true,
		Seed:           1,
	}
}

func (o *Options) validate() error {
	if o.Components < 1 {
		return fmt.Errorf("components must be at least 1, got %d", o.Components)
	}
	if o.Gamma < 0 {
		return fmt.Errorf("gamma must be non-negative, got %v", o.Gamma)
	}
	if o.MaxIterations < 0 {
		return fmt.Errorf("max iterations must be non-negative, got %d", o.MaxIterations)
	}
	if !o.Connectivity.Valid() {
		return fmt.Errorf("connectivity must be 4 or 8, got %d", o.Connectivity)
	}
	if o.Regularization <= 0 {
		o.Regularization = gmm.DefaultRegularization
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return nil
}
