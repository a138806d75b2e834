// Package grabcut 是不依赖推理服务的候选掩码来源：显著性 + GrabCut 求前景，
// 再把前景的每个外轮廓区域作为一个候选。
package grabcut

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"time"

	"github.com/CloneITai/CloneITLocalAis/segment"
	"github.com/CloneITai/CloneITLocalAis/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var ErrEmptyImage = errors.New("grabcut: empty image")

type Options struct {
	Name       string
	Iterations int
	BorderSize int
	MaxSide    int
	Cascade    string
}

// Proposer 用经典算法生成候选掩码。人脸级联分类器在加载时读入，之后只读。
type Proposer struct {
	opts             Options
	maskProcessor    *MaskProcessor
	portraitDetector *PortraitDetector
}

func New(opts Options, portrait *PortraitDetector) *Proposer {
	if opts.Iterations <= 0 {
		opts.Iterations = 5
	}
	if opts.MaxSide <= 0 {
		opts.MaxSide = 1200
	}
	return &Proposer{
		opts:             opts,
		maskProcessor:    NewMaskProcessor(),
		portraitDetector: portrait,
	}
}

// Loader 加载人脸级联文件（可选）并返回 Proposer
func Loader(opts Options) segment.Loader {
	return func(ctx context.Context) (segment.Model, error) {
		portrait := NewPortraitDetector()
		if opts.Cascade != "" {
			if _, err := os.Stat(opts.Cascade); err != nil {
				utils.Logger.Warn("face cascade not found, face detection disabled",
					zap.String("cascade", opts.Cascade), zap.Error(err))
			} else if err := portrait.LoadCascade(opts.Cascade); err != nil {
				return nil, err
			}
		}
		return New(opts, portrait), nil
	}
}

func (p *Proposer) Name() string {
	return p.opts.Name
}

func (p *Proposer) Close() error {
	return p.portraitDetector.Close()
}

// Generate 返回整个前景掩码以及前景中每个外轮廓区域
func (p *Proposer) Generate(ctx context.Context, src *image.NRGBA) ([]segment.Mask, error) {
	img, err := gocv.ImageToMatRGB(src)
	if err != nil {
		return nil, fmt.Errorf("convert image: %w", err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, ErrEmptyImage
	}

	startTime := time.Now()
	width := img.Cols()
	height := img.Rows()

	fgMask, err := p.foreground(ctx, &img)
	if err != nil {
		return nil, err
	}
	defer fgMask.Close()

	candidates := []segment.Mask{matToMask(&fgMask)}

	contours := gocv.FindContours(fgMask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() > 1 {
		white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
		for i := 0; i < contours.Size(); i++ {
			region := gocv.Zeros(height, width, gocv.MatTypeCV8U)
			gocv.DrawContours(&region, contours, i, white, -1)
			gocv.BitwiseAnd(region, fgMask, &region)
			candidates = append(candidates, matToMask(&region))
			region.Close()
		}
	}

	utils.Logger.Debug("grabcut candidates generated",
		zap.Int("count", len(candidates)),
		zap.Duration("duration", time.Since(startTime)))

	return candidates, nil
}

// foreground 在缩放后的图像上运行 GrabCut，返回原尺寸的 0/255 前景掩码
func (p *Proposer) foreground(ctx context.Context, img *gocv.Mat) (gocv.Mat, error) {
	width := img.Cols()
	height := img.Rows()

	scaledImg, scale := smartResize(img, p.opts.MaxSide)
	defer scaledImg.Close()

	scaledWidth := scaledImg.Cols()
	scaledHeight := scaledImg.Rows()

	sc := analyzeScene(&scaledImg, p.portraitDetector)
	utils.Logger.Debug("scene analyzed",
		zap.String("level", sc.level),
		zap.Bool("is_portrait", sc.portrait))

	if err := ctx.Err(); err != nil {
		return gocv.Mat{}, err
	}

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()

	var labels gocv.Mat
	if sc.level == LevelSimple {
		// 简单场景：画面内缩一圈作为初始矩形
		border := p.opts.BorderSize
		if border < 10 {
			border = scaledWidth / 20
		}
		labels = gocv.NewMat()
		rect := image.Rect(0, 0, scaledWidth, scaledHeight).Inset(border)
		gocv.GrabCut(scaledImg, &labels, rect, &bgdModel, &fgdModel, sc.iterations(p.opts.Iterations), gocv.GCInitWithRect)
	} else {
		var rect image.Rectangle
		rect, labels = saliencyPrior(&scaledImg)
		utils.Logger.Debug("saliency prior", zap.String("rect", rect.String()))
		gocv.GrabCut(scaledImg, &labels, image.Rectangle{}, &bgdModel, &fgdModel, sc.iterations(p.opts.Iterations), gocv.GCInitWithMask)
		gocv.GrabCut(scaledImg, &labels, image.Rectangle{}, &bgdModel, &fgdModel, 2, gocv.GCInitWithMask)
	}
	defer labels.Close()

	fgMask := p.maskProcessor.ExtractForeground(&labels)

	if sc.portrait {
		enhanced := p.portraitDetector.EnhancePortraitMask(&fgMask, &scaledImg)
		fgMask.Close()
		fgMask = enhanced
	}

	optimized := p.maskProcessor.MorphologyOptimize(&fgMask, sc.morphKernel())
	fgMask.Close()
	fgMask = optimized

	if sc.level != LevelSimple {
		refined := p.maskProcessor.RefineEdges(&fgMask)
		fgMask.Close()
		fgMask = refined
	}

	// 还原到原始尺寸
	if scale != 1.0 {
		resizedMask := gocv.NewMat()
		gocv.Resize(fgMask, &resizedMask, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationLinear)
		gocv.Threshold(resizedMask, &resizedMask, 127, 255, gocv.ThresholdBinary)
		fgMask.Close()
		fgMask = resizedMask
	}

	return fgMask, nil
}

// smartResize 智能缩放图像以适应最大尺寸
func smartResize(img *gocv.Mat, maxSize int) (gocv.Mat, float64) {
	width := img.Cols()
	height := img.Rows()
	maxDim := max(width, height)
	if maxDim <= maxSize {
		return img.Clone(), 1.0
	}

	scale := float64(maxSize) / float64(maxDim)
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)

	resized := gocv.NewMat()
	gocv.Resize(*img, &resized, image.Point{X: newWidth, Y: newHeight}, 0, 0, gocv.InterpolationArea)

	return resized, scale
}

// matToMask 把单通道 0/255 Mat 转成候选掩码
func matToMask(m *gocv.Mat) segment.Mask {
	rows, cols := m.Rows(), m.Cols()
	data := m.ToBytes()
	occ := make([]bool, rows*cols)
	for i := range occ {
		occ[i] = data[i] > 0
	}
	return segment.NewMask(cols, rows, occ)
}
