package grabcut

import (
	"image"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// GrabCut 掩码标签
const (
	gcBackground         = 0
	gcProbableBackground = 2
	gcProbableForeground = 3
)

const (
	LevelSimple   = "simple"
	LevelMedium   = "medium"
	LevelComplex  = "complex"
	LevelPortrait = "portrait"
)

// scene 是对缩放后图像的一次分析，决定初始化方式、迭代次数和后处理强度
type scene struct {
	level    string
	portrait bool
}

func analyzeScene(img *gocv.Mat, portrait *PortraitDetector) scene {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	density := float64(gocv.CountNonZero(edges)) / float64(img.Total())
	isPortrait := portrait.IsPortrait(img)

	return scene{
		level:    classify(density, labSpread(img), isPortrait),
		portrait: isPortrait,
	}
}

func classify(edgeDensity, colorSpread float64, isPortrait bool) string {
	switch {
	case isPortrait:
		return LevelPortrait
	case edgeDensity < 0.05 && colorSpread < 30:
		return LevelSimple
	case edgeDensity > 0.15 || colorSpread > 60:
		return LevelComplex
	default:
		return LevelMedium
	}
}

// labSpread Lab 三个通道标准差的均值
func labSpread(img *gocv.Mat) float64 {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lab, &mean, &stddev)

	spreads := make([]float64, stddev.Rows())
	for i := range spreads {
		spreads[i] = stddev.GetDoubleAt(i, 0)
	}
	return stat.Mean(spreads, nil)
}

func (s scene) iterations(base int) int {
	switch s.level {
	case LevelSimple:
		return max(3, base-2)
	case LevelPortrait:
		return base + 1
	case LevelComplex:
		return base + 2
	default:
		return base
	}
}

func (s scene) morphKernel() int {
	if s.level == LevelComplex || s.level == LevelPortrait {
		return 5
	}
	return 3
}

// saliencyPrior 用梯度显著性给出 GrabCut 的初始矩形与标签掩码
func saliencyPrior(img *gocv.Mat) (image.Rectangle, gocv.Mat) {
	w, h := img.Cols(), img.Rows()
	saliency := gradientSaliency(img)
	defer saliency.Close()
	return subjectRect(saliency, w, h), seedMask(saliency, w, h)
}

// gradientSaliency Sobel 梯度幅值模糊后做 Otsu 二值化
func gradientSaliency(img *gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	var abs [2]gocv.Mat
	for i, d := range [2]image.Point{{X: 1}, {Y: 1}} {
		grad := gocv.NewMat()
		gocv.Sobel(gray, &grad, gocv.MatTypeCV16S, d.X, d.Y, 3, 1, 0, gocv.BorderDefault)
		abs[i] = gocv.NewMat()
		gocv.ConvertScaleAbs(grad, &abs[i], 1, 0)
		grad.Close()
	}
	defer abs[0].Close()
	defer abs[1].Close()

	magnitude := gocv.NewMat()
	defer magnitude.Close()
	gocv.AddWeighted(abs[0], 0.5, abs[1], 0.5, 0, &magnitude)
	gocv.GaussianBlur(magnitude, &magnitude, image.Point{X: 21, Y: 21}, 0, 0, gocv.BorderDefault)

	saliency := gocv.NewMat()
	gocv.Threshold(magnitude, &saliency, 0, 255, gocv.ThresholdOtsu)
	return saliency
}

func dilate(src gocv.Mat, size int) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: size, Y: size})
	defer kernel.Close()
	out := gocv.NewMat()
	gocv.Dilate(src, &out, kernel)
	return out
}

// subjectRect 最大显著区域的外接矩形，四周外扩宽度的 5%；没有显著区域时取内缩 10% 的画面
func subjectRect(saliency gocv.Mat, w, h int) image.Rectangle {
	frame := image.Rect(0, 0, w, h)

	grown := dilate(saliency, 21)
	defer grown.Close()
	contours := gocv.FindContours(grown, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	if contours.Size() == 0 {
		return frame.Inset(w / 10)
	}

	var best image.Rectangle
	bestArea := 0.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			bestArea = area
			best = gocv.BoundingRect(contours.At(i))
		}
	}
	return best.Inset(-best.Dx() / 20).Intersect(frame)
}

// seedMask 显著区域标为可能前景，其余为可能背景，画面边缘一圈标为确定背景
func seedMask(saliency gocv.Mat, w, h int) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(gcProbableBackground, 0, 0, 0), h, w, gocv.MatTypeCV8U)

	grown := dilate(saliency, 11)
	defer grown.Close()
	salient := gocv.NewMat()
	defer salient.Close()
	gocv.Threshold(grown, &salient, 128, 255, gocv.ThresholdBinary)

	probable := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(gcProbableForeground, 0, 0, 0), h, w, gocv.MatTypeCV8U)
	defer probable.Close()
	probable.CopyToWithMask(&mask, salient)

	frame := image.Rect(0, 0, w, h)
	if b := w * 3 / 100; b > 0 {
		for _, r := range []image.Rectangle{
			image.Rect(0, 0, w, b),
			image.Rect(0, h-b, w, h),
			image.Rect(0, 0, b, h),
			image.Rect(w-b, 0, w, h),
		} {
			r = r.Intersect(frame)
			if r.Empty() {
				continue
			}
			edge := mask.Region(r)
			edge.SetTo(gocv.NewScalar(gcBackground, 0, 0, 0))
			edge.Close()
		}
	}
	return mask
}
