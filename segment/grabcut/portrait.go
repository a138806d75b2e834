package grabcut

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// skinRatioThreshold 肤色像素占比超过该值视为人像
const skinRatioThreshold = 0.15

// PortraitDetector 用 YCrCb 肤色范围和（可选的）人脸级联分类器识别人像
type PortraitDetector struct {
	mu         sync.Mutex
	classifier *gocv.CascadeClassifier
}

func NewPortraitDetector() *PortraitDetector {
	return &PortraitDetector{}
}

// LoadCascade 读入人脸级联文件，只在模型加载时调用一次
func (pd *PortraitDetector) LoadCascade(path string) error {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		_ = classifier.Close()
		return fmt.Errorf("load face cascade %s", path)
	}
	pd.mu.Lock()
	pd.classifier = &classifier
	pd.mu.Unlock()
	return nil
}

func (pd *PortraitDetector) Close() error {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.classifier == nil {
		return nil
	}
	err := pd.classifier.Close()
	pd.classifier = nil
	return err
}

// DetectSkin 返回肤色区域掩码
func (pd *PortraitDetector) DetectSkin(img *gocv.Mat) gocv.Mat {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(*img, &ycrcb, gocv.ColorBGRToYCrCb)

	lower := gocv.Scalar{Val1: 0, Val2: 133, Val3: 77, Val4: 0}
	upper := gocv.Scalar{Val1: 255, Val2: 173, Val3: 127, Val4: 255}

	skinMask := gocv.NewMat()
	gocv.InRangeWithScalar(ycrcb, lower, upper, &skinMask)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 5, Y: 5})
	defer kernel.Close()

	gocv.MorphologyEx(skinMask, &skinMask, gocv.MorphClose, kernel)
	gocv.MorphologyEx(skinMask, &skinMask, gocv.MorphOpen, kernel)

	return skinMask
}

// DetectFaces 未加载级联文件时返回 nil。CascadeClassifier 不是并发安全的，调用被串行化。
func (pd *PortraitDetector) DetectFaces(img *gocv.Mat) []image.Rectangle {
	pd.mu.Lock()
	defer pd.mu.Unlock()
	if pd.classifier == nil {
		return nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	return pd.classifier.DetectMultiScale(gray)
}

func (pd *PortraitDetector) IsPortrait(img *gocv.Mat) bool {
	if len(pd.DetectFaces(img)) > 0 {
		return true
	}

	skinMask := pd.DetectSkin(img)
	defer skinMask.Close()

	totalPixels := float64(img.Rows() * img.Cols())
	skinPixels := float64(gocv.CountNonZero(skinMask))

	return skinPixels/totalPixels > skinRatioThreshold
}

// EnhancePortraitMask 把膨胀后的肤色区域并入前景，避免手臂、脸部被切掉
func (pd *PortraitDetector) EnhancePortraitMask(originalMask, img *gocv.Mat) gocv.Mat {
	skinMask := pd.DetectSkin(img)
	defer skinMask.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: 15, Y: 15})
	defer kernel.Close()

	dilatedSkin := gocv.NewMat()
	defer dilatedSkin.Close()
	gocv.Dilate(skinMask, &dilatedSkin, kernel)

	enhanced := gocv.NewMat()
	gocv.BitwiseOr(*originalMask, dilatedSkin, &enhanced)

	return enhanced
}
