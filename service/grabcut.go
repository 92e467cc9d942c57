package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/TIANLI0/LayerCut/config"
	"github.com/TIANLI0/LayerCut/model"
	"github.com/TIANLI0/LayerCut/raster"
	"github.com/TIANLI0/LayerCut/segment"
	"github.com/TIANLI0/LayerCut/utils"
)

// ErrQueueFull 等待处理队列超时
var ErrQueueFull = errors.New("处理队列已满，请稍后重试")

// 初始区域的来源
const (
	InitRect         = "rect"
	InitBorder       = "border"
	InitSaliency     = "saliency"
	InitSaliencyRect = "saliency_rect"
)

// SegmentRequest 一次分层请求的参数
type SegmentRequest struct {
	// Rect 原图坐标下的前景框，为空时自动选择
	Rect              *image.Rectangle
	MaxForegroundOnly bool
}

// CacheKey 按请求参数区分缓存
func (r SegmentRequest) CacheKey(md5 string) string {
	key := md5
	if r.MaxForegroundOnly {
		key += ":max_fg"
	}
	if r.Rect != nil {
		key += ":" + utils.BytesMD5([]byte(r.Rect.String()))[:8]
	}
	return key
}

// GrabCutService 负责图像分层处理
type GrabCutService struct {
	options            segment.Options
	borderSize         int
	maxDimension       int
	semaphore          chan struct{}
	queueTimeout       time.Duration
	complexityAnalyzer *ComplexityAnalyzer
	saliencyDetector   *SaliencyDetector
	maskProcessor      *MaskProcessor
	log                *zap.Logger
}

func NewGrabCutService(cfg *config.GrabCutConfig) *GrabCutService {
	return &GrabCutService{
		options:            cfg.ToOptions(),
		borderSize:         cfg.BorderSize,
		maxDimension:       cfg.MaxDimension,
		semaphore:          make(chan struct{}, max(1, cfg.MaxConcurrent)),
		queueTimeout:       time.Duration(cfg.QueueTimeout) * time.Second,
		complexityAnalyzer: NewComplexityAnalyzer(),
		saliencyDetector:   NewSaliencyDetector(),
		maskProcessor:      NewMaskProcessor(),
		log:                utils.Named("grabcut"),
	}
}

// ProcessImage 处理图片并返回分层结果
func (s *GrabCutService) ProcessImage(ctx context.Context, imagePath string, md5 string, req SegmentRequest) (*model.LayerResult, error) {
	// 并发控制
	queueCtx, cancel := context.WithTimeout(ctx, s.queueTimeout)
	defer cancel()

	select {
	case s.semaphore <- struct{}{}:
		defer func() { <-s.semaphore }()
	case <-queueCtx.Done():
		return nil, ErrQueueFull
	}

	startTime := time.Now()

	src, err := LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	width := src.Bounds().Dx()
	height := src.Bounds().Dy()

	s.log.Info("processing image",
		zap.String("md5", md5),
		zap.Int("width", width),
		zap.Int("height", height))

	// 智能缩放
	scaled, scale := smartResize(src, s.maxDimension)
	work := raster.FromImage(scaled)

	bgr, err := gocv.NewMatFromBytes(work.Height, work.Width, gocv.MatTypeCV8UC3, work.BGRBytes())
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer bgr.Close()

	complexity := s.complexityAnalyzer.Analyze(&bgr)
	s.log.Info("scene analyzed",
		zap.String("level", complexity.Level),
		zap.Float64("edge_density", complexity.EdgeDensity),
		zap.Float64("color_variance", complexity.ColorVariance),
		zap.Float64("skin_ratio", complexity.SkinRatio))

	opts := s.options
	opts.MaxIterations = s.iterationBudget(complexity.Level)
	opts.Logger = s.log.With(zap.String("md5", md5))

	seg, initMode, err := s.newSegmenter(work, &bgr, req, complexity.Level, scale, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize segmentation: %w", err)
	}
	res, err := seg.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("segmentation failed: %w", err)
	}

	fgMask, err := s.maskProcessor.FromLabels(res.Mask)
	if err != nil {
		return nil, err
	}
	defer func() { fgMask.Close() }()

	kernelSize := 3
	if complexity.Level == LevelComplex || complexity.Level == LevelPortrait {
		kernelSize = 5
	}
	optimized := s.maskProcessor.MorphologyOptimize(&fgMask, kernelSize)
	fgMask.Close()
	fgMask = optimized

	if complexity.Level != LevelSimple {
		refined := s.maskProcessor.RefineEdges(&fgMask)
		fgMask.Close()
		fgMask = refined
	}

	// 还原到原始尺寸
	if scale != 1.0 {
		upscaled := s.maskProcessor.Upscale(&fgMask, width, height)
		fgMask.Close()
		fgMask = upscaled
	}

	if req.MaxForegroundOnly {
		largest := s.maskProcessor.KeepLargest(&fgMask)
		fgMask.Close()
		fgMask = largest
	}

	box := s.maskProcessor.BoundingBox(&fgMask)
	fgMaskBase64 := s.encodeMask(&fgMask)

	bgMask := gocv.NewMat()
	defer bgMask.Close()
	gocv.BitwiseNot(fgMask, &bgMask)
	bgMaskBase64 := s.encodeMask(&bgMask)

	fgConfidence := calculateConfidence(gocv.CountNonZero(fgMask), width, height)
	duration := time.Since(startTime)

	result := &model.LayerResult{
		MD5:       md5,
		Width:     width,
		Height:    height,
		Timestamp: time.Now().Unix(),
		Layers: []model.Layer{
			{
				ID:   1,
				Type: "foreground",
				BoundingBox: model.BBox{
					X:      box.Min.X,
					Y:      box.Min.Y,
					Width:  box.Dx(),
					Height: box.Dy(),
				},
				Mask:       fgMaskBase64,
				Confidence: fgConfidence,
			},
			{
				ID:          2,
				Type:        "background",
				BoundingBox: model.BBox{X: 0, Y: 0, Width: width, Height: height},
				Mask:        bgMaskBase64,
				Confidence:  1.0 - fgConfidence,
			},
		},
		Segmentation: &model.SegmentationStats{
			Iterations:  res.Iterations,
			State:       res.State.String(),
			Converged:   res.Converged(),
			FinalEnergy: res.FinalEnergy(),
			Beta:        res.Beta,
			Complexity:  complexity.Level,
			InitMode:    initMode,
			Scale:       scale,
			DurationMS:  duration.Milliseconds(),
		},
	}

	s.log.Info("image processed successfully",
		zap.String("md5", md5),
		zap.Duration("duration", duration),
		zap.Float64("foreground_confidence", fgConfidence),
		zap.String("complexity", complexity.Level),
		zap.String("init_mode", initMode),
		zap.Int("iterations", res.Iterations),
		zap.Stringer("state", res.State))

	return result, nil
}

// newSegmenter 选择初始区域：请求指定的矩形、简单场景的边框矩形或显著性区域
func (s *GrabCutService) newSegmenter(work *raster.Image, bgr *gocv.Mat, req SegmentRequest, level string, scale float64, opts segment.Options) (*segment.Segmenter, string, error) {
	w, h := work.Width, work.Height

	if req.Rect != nil {
		r := scaleRect(*req.Rect, scale, w, h)
		seg, err := segment.New(work, raster.FromRectangle(r), opts)
		return seg, InitRect, err
	}

	if level == LevelSimple {
		border := s.borderSize
		if border < 10 {
			border = int(float64(w) * 0.05)
		}
		r := image.Rect(border, border, w-border, h-border)
		seg, err := segment.New(work, raster.FromRectangle(r), opts)
		return seg, InitBorder, err
	}

	saliency := s.saliencyDetector.Detect(bgr)
	defer saliency.Close()

	initMask := s.saliencyDetector.CreateMask(&saliency, w, h)
	defer initMask.Close()
	fg := s.maskProcessor.ExtractForeground(&initMask)
	defer fg.Close()

	labels := s.maskProcessor.ToLabels(&fg)
	if n := labels.Count(raster.Foreground); n > 0 && n < len(labels.Labels) {
		// 可能背景与前景一样参与迭代
		opts.FixBackground = false
		seg, err := segment.NewFromMask(work, labels, opts)
		return seg, InitSaliency, err
	}

	r := s.saliencyDetector.ExtractRect(&saliency, w, h)
	seg, err := segment.New(work, raster.FromRectangle(r), opts)
	return seg, InitSaliencyRect, err
}

// iterationBudget 简单场景减半，复杂场景和人像增加一半
func (s *GrabCutService) iterationBudget(level string) int {
	base := s.options.MaxIterations
	switch level {
	case LevelSimple:
		return max(3, base/2)
	case LevelComplex, LevelPortrait:
		return base + base/2
	default:
		return base
	}
}

// scaleRect 将原图坐标的矩形映射到工作尺寸并裁剪到图像范围内
func scaleRect(r image.Rectangle, scale float64, width, height int) image.Rectangle {
	scaled := image.Rect(
		int(math.Floor(float64(r.Min.X)*scale)),
		int(math.Floor(float64(r.Min.Y)*scale)),
		int(math.Ceil(float64(r.Max.X)*scale)),
		int(math.Ceil(float64(r.Max.Y)*scale)),
	)
	return scaled.Intersect(image.Rect(0, 0, width, height))
}

// encodeMask 将掩码编码为Base64字符串
func (s *GrabCutService) encodeMask(mask *gocv.Mat) string {
	data, err := gocv.IMEncode(gocv.PNGFileExt, *mask)
	if err != nil {
		s.log.Error("failed to encode mask", zap.Error(err))
		return ""
	}
	defer data.Close()

	return base64.StdEncoding.EncodeToString(data.GetBytes())
}

// calculateConfidence 前景面积占比，限制在 [0.05, 0.95]
func calculateConfidence(foreground, width, height int) float64 {
	confidence := float64(foreground) / float64(width*height)
	if confidence < 0.05 {
		confidence = 0.05
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}
