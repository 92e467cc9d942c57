package segment

import (
	"github.com/pkg/errors"

	"github.com/TIANLI0/LayerCut/maxflow"
)

var (
	// ErrEmptyClass 初始矩形内或矩形外没有像素，无法建立两个颜色模型
	ErrEmptyClass = errors.New("segment: initial region leaves a class empty")
	// ErrMalformedGraph 流网络违反容量约定，属于内部逻辑错误
	ErrMalformedGraph = maxflow.ErrMalformedGraph
	// ErrSolverState 求解器的 Build/Solve/Partition 调用顺序错误
	ErrSolverState = errors.New("segment: solver used out of order")
	// ErrInvalidInput 图像、掩码或参数不合法
	ErrInvalidInput = errors.New("segment: invalid input")
)
