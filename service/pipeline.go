package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/CloneITai/CloneITLocalAis/segment"
	"github.com/CloneITai/CloneITLocalAis/utils"
	"go.uber.org/zap"
)

type PipelineOptions struct {
	Model      string
	KernelSize int
	Timeout    time.Duration
	WorkDir    string
}

// Pipeline 串起 模型加载 → 解码 → RGB → 候选掩码 → 选择 → 羽化 → 合成 → 编码。
// 模型注册表与 worker 池由外部注入，跨请求共享；其余数据只存在于单次 Run 内。
type Pipeline struct {
	registry *segment.Registry
	pool     *WorkerPool
	opts     PipelineOptions
}

// Result 是成功时的产物
type Result struct {
	Image          []byte
	Width          int
	Height         int
	CandidateCount int
	SelectedArea   int
	Steps          []string
	Duration       time.Duration
}

func NewPipeline(registry *segment.Registry, pool *WorkerPool, opts PipelineOptions) *Pipeline {
	if opts.KernelSize <= 0 {
		opts.KernelSize = DefaultKernelSize
	}
	return &Pipeline{registry: registry, pool: pool, opts: opts}
}

// Model 返回流水线使用的模型名
func (p *Pipeline) Model() string {
	return p.opts.Model
}

// RunUpload 把上传内容落到请求级临时文件后执行 Run，临时文件在返回前删除
func (p *Pipeline) RunUpload(ctx context.Context, r io.Reader, ext string) (*Result, error) {
	var res *Result
	err := withTempFile(p.opts.WorkDir, ext, r, func(path string) error {
		var runErr error
		res, runErr = p.Run(ctx, path)
		return runErr
	})
	if err != nil {
		var pe *PipelineError
		if errors.As(err, &pe) {
			return nil, pe
		}
		return nil, &PipelineError{Kind: KindComposite, Message: err.Error(), Err: err}
	}
	return res, nil
}

// Run 处理 sourcePath 指向的图片。所有失败（包括 panic）都转换成 *PipelineError 返回
func (p *Pipeline) Run(ctx context.Context, sourcePath string) (res *Result, err error) {
	start := time.Now()
	logger := utils.Logger.With(zap.String("request_id", RequestIDFrom(ctx)), zap.String("model", p.opts.Model))
	status := NewStatusLog(logger)
	stage := KindComposite

	fail := func(kind ErrorKind, reason string, cause error) *PipelineError {
		status.Add("Failed: %v", cause)
		logger.Error("background removal failed",
			zap.String("kind", string(kind)),
			zap.String("reason", reason),
			zap.Error(cause))
		return &PipelineError{
			Kind:    kind,
			Reason:  reason,
			Message: cause.Error(),
			Steps:   status.Steps(),
			Err:     cause,
		}
	}

	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = fail(stage, "", fmt.Errorf("unexpected panic: %v", r))
		}
	}()

	status.Add("Starting background removal pipeline")

	stage = KindSegmentation
	status.Add("Loading model %s", p.opts.Model)
	model, loadErr := p.registry.Get(ctx, p.opts.Model)
	if loadErr != nil {
		return nil, fail(KindSegmentation, ReasonModelLoad, loadErr)
	}

	stage = KindDecode
	status.Add("Loading image %s", filepath.Base(sourcePath))
	decoded, format, decodeErr := DecodeFile(sourcePath)
	if decodeErr != nil {
		return nil, fail(KindDecode, "", decodeErr)
	}
	rgb := ToRGB(decoded)
	bounds := rgb.Bounds()
	status.Add("Converted %s image (%dx%d) to RGB", format, bounds.Dx(), bounds.Dy())

	stage = KindSegmentation
	status.Add("Generating segmentation masks")
	masks, proposeErr := p.pool.Propose(ctx, p.opts.Timeout, model, rgb)
	if proposeErr != nil {
		return nil, fail(KindSegmentation, segmentationReason(proposeErr), proposeErr)
	}
	if len(masks) == 0 {
		return nil, fail(KindSegmentation, ReasonEmpty, ErrEmptyProposal)
	}
	for i, m := range masks {
		if !m.Fits(bounds) {
			return nil, fail(KindSegmentation, ReasonFailed,
				fmt.Errorf("%w: candidate %d is %dx%d", segment.ErrMaskSize, i, m.Width, m.Height))
		}
	}
	status.Add("%d mask(s) generated", len(masks))

	stage = KindNoCandidates
	status.Add("Selecting largest mask")
	selected, selectErr := SelectMask(masks)
	if selectErr != nil {
		return nil, fail(KindNoCandidates, "", selectErr)
	}
	status.Add("Selected mask covering %d of %d pixels", selected.Area, bounds.Dx()*bounds.Dy())

	stage = KindComposite
	status.Add("Creating feathered alpha matte (kernel %dx%d)", p.opts.KernelSize, p.opts.KernelSize)
	matte, matteErr := BuildMatte(selected, p.opts.KernelSize)
	if matteErr != nil {
		return nil, fail(KindComposite, "", matteErr)
	}

	status.Add("Compositing transparent image")
	composited, composeErr := Compose(rgb, selected, matte)
	if composeErr != nil {
		return nil, fail(KindComposite, "", composeErr)
	}

	data, encodeErr := EncodePNG(composited)
	if encodeErr != nil {
		return nil, fail(KindComposite, "", encodeErr)
	}
	status.Add("Done: encoded %d byte PNG", len(data))

	logger.Info("background removed",
		zap.Int("width", bounds.Dx()),
		zap.Int("height", bounds.Dy()),
		zap.Int("candidates", len(masks)),
		zap.Int("selected_area", selected.Area),
		zap.Duration("duration", time.Since(start)))

	return &Result{
		Image:          data,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		CandidateCount: len(masks),
		SelectedArea:   selected.Area,
		Steps:          status.Steps(),
		Duration:       time.Since(start),
	}, nil
}

func segmentationReason(err error) string {
	switch {
	case errors.Is(err, ErrProposalTimeout):
		return ReasonTimeout
	case errors.Is(err, ErrQueueTimeout):
		return ReasonQueueTimeout
	case errors.Is(err, ErrProposalCanceled):
		return ReasonCanceled
	default:
		return ReasonFailed
	}
}
