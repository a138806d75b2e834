package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineError(t *testing.T) {
	err := &PipelineError{Kind: KindSegmentation, Reason: ReasonTimeout, Message: "too slow", Err: ErrProposalTimeout}
	assert.Equal(t, "SegmentationError (timeout): too slow", err.Error())
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", err), ErrProposalTimeout)

	v := NewValidationError("unsupported file type .gif")
	assert.Equal(t, "ValidationError: unsupported file type .gif", v.Error())
	assert.Nil(t, v.Unwrap())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindDecode, KindOf(fmt.Errorf("x: %w", &PipelineError{Kind: KindDecode})))
	assert.Equal(t, KindComposite, KindOf(errors.New("plain")))
}

func TestSegmentationReason(t *testing.T) {
	assert.Equal(t, ReasonTimeout, segmentationReason(fmt.Errorf("%w: deadline", ErrProposalTimeout)))
	assert.Equal(t, ReasonQueueTimeout, segmentationReason(ErrQueueTimeout))
	assert.Equal(t, ReasonCanceled, segmentationReason(fmt.Errorf("%w: canceled", ErrProposalCanceled)))
	assert.Equal(t, ReasonFailed, segmentationReason(errors.New("boom")))
}

func TestStatusLog(t *testing.T) {
	log := NewStatusLog(nil)
	log.Add("step %d", 1)
	log.Add("step %d", 2)

	steps := log.Steps()
	assert.Equal(t, []string{"step 1", "step 2"}, steps)

	steps[0] = "mutated"
	assert.Equal(t, "step 1", log.Steps()[0])
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, RequestIDFrom(context.Background()))
	assert.Equal(t, "abc", RequestIDFrom(WithRequestID(context.Background(), "abc")))
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "cutout:sam_vit_b:5d41402abc4b2a76b9719d911017c592",
		CacheKey("sam_vit_b", "5d41402abc4b2a76b9719d911017c592"))
}
