package service

import (
	"image"

	"gocv.io/x/gocv"
)

// 场景复杂度等级
const (
	LevelSimple   = "simple"
	LevelMedium   = "medium"
	LevelComplex  = "complex"
	LevelPortrait = "portrait"
)

// ComplexityAnalyzer 负责分析图像的复杂度
type ComplexityAnalyzer struct {
	// portraitSkinRatio 肤色像素占比超过该值视为人像
	portraitSkinRatio float64
}

type ComplexityInfo struct {
	Level         string
	EdgeDensity   float64
	ColorVariance float64
	SkinRatio     float64
}

// NewComplexityAnalyzer 创建一个新的ComplexityAnalyzer实例
func NewComplexityAnalyzer() *ComplexityAnalyzer {
	return &ComplexityAnalyzer{portraitSkinRatio: 0.15}
}

// IsPortrait 是否判定为人像
func (ci ComplexityInfo) IsPortrait() bool {
	return ci.Level == LevelPortrait
}

// Analyze 分析图像的复杂度
func (ca *ComplexityAnalyzer) Analyze(img *gocv.Mat) ComplexityInfo {
	info := ComplexityInfo{
		EdgeDensity:   ca.calculateEdgeDensity(img),
		ColorVariance: ca.calculateColorVariance(img),
		SkinRatio:     ca.calculateSkinRatio(img),
	}
	info.Level = classify(info, ca.portraitSkinRatio)
	return info
}

func classify(info ComplexityInfo, skinRatio float64) string {
	switch {
	case info.SkinRatio > skinRatio:
		return LevelPortrait
	case info.EdgeDensity < 0.05 && info.ColorVariance < 30:
		return LevelSimple
	case info.EdgeDensity > 0.15 || info.ColorVariance > 60:
		return LevelComplex
	default:
		return LevelMedium
	}
}

// calculateEdgeDensity 计算图像的边缘密度
func (ca *ComplexityAnalyzer) calculateEdgeDensity(img *gocv.Mat) float64 {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	edgePixels := float64(gocv.CountNonZero(edges))
	totalPixels := float64(img.Rows() * img.Cols())

	return edgePixels / totalPixels
}

// calculateColorVariance Lab 空间各通道标准差的均值
func (ca *ComplexityAnalyzer) calculateColorVariance(img *gocv.Mat) float64 {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	mean := gocv.NewMat()
	stddev := gocv.NewMat()
	defer mean.Close()
	defer stddev.Close()
	gocv.MeanStdDev(lab, &mean, &stddev)

	variance := 0.0
	for i := 0; i < stddev.Rows(); i++ {
		variance += stddev.GetDoubleAt(i, 0)
	}

	return variance / float64(stddev.Rows())
}

// calculateSkinRatio YCrCb 肤色范围内的像素占比
func (ca *ComplexityAnalyzer) calculateSkinRatio(img *gocv.Mat) float64 {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(*img, &ycrcb, gocv.ColorBGRToYCrCb)

	lower := gocv.Scalar{Val1: 0, Val2: 133, Val3: 77, Val4: 0}
	upper := gocv.Scalar{Val1: 255, Val2: 173, Val3: 127, Val4: 255}

	skin := gocv.NewMat()
	defer skin.Close()
	gocv.InRangeWithScalar(ycrcb, lower, upper, &skin)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 5, Y: 5})
	defer kernel.Close()
	gocv.MorphologyEx(skin, &skin, gocv.MorphOpen, kernel)

	return float64(gocv.CountNonZero(skin)) / float64(img.Rows()*img.Cols())
}
