package service

import (
	"errors"
	"fmt"
)

// ErrorKind 是对外暴露的失败分类
type ErrorKind string

const (
	KindValidation   ErrorKind = "ValidationError"
	KindDecode       ErrorKind = "DecodeError"
	KindSegmentation ErrorKind = "SegmentationError"
	KindNoCandidates ErrorKind = "NoCandidatesError"
	KindComposite    ErrorKind = "CompositeError"
)

// SegmentationError 的细分原因
const (
	ReasonFailed       = "failed"
	ReasonEmpty        = "empty"
	ReasonTimeout      = "timeout"
	ReasonQueueTimeout = "queue_timeout"
	ReasonCanceled     = "canceled"
	ReasonModelLoad    = "model_load"
)

var (
	ErrNoCandidates     = errors.New("service: no candidate masks to select from")
	ErrEmptyProposal    = errors.New("service: mask proposal returned no candidates")
	ErrProposalTimeout  = errors.New("service: mask proposal timed out")
	ErrProposalCanceled = errors.New("service: mask proposal canceled by caller")
	ErrQueueTimeout     = errors.New("service: timed out waiting for a segmentation worker")
	ErrPoolClosed       = errors.New("service: worker pool is closed")
	ErrSizeMismatch     = errors.New("service: raster dimensions do not match")
	ErrKernelSize       = errors.New("service: kernel size must be a positive odd number")
)

// PipelineError 是流水线唯一的失败出口，携带已执行步骤的日志
type PipelineError struct {
	Kind    ErrorKind
	Reason  string
	Message string
	Steps   []string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewValidationError 用于流水线开始之前的请求校验失败
func NewValidationError(message string) *PipelineError {
	return &PipelineError{Kind: KindValidation, Message: message}
}

// KindOf 返回错误的分类；非 PipelineError 视为合成阶段的意外错误
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindComposite
}
