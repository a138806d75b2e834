package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/CloneITai/CloneITLocalAis/segment"
	"github.com/CloneITai/CloneITLocalAis/utils"
	"go.uber.org/zap"
)

// WorkerPool 用固定数量的 worker 执行候选掩码生成。
// 没有空闲 worker 时最多等待 queueTimeout；生成器本身不可中断，
// 调用方超时后该 worker 会一直占用到生成器返回为止。
type WorkerPool struct {
	jobs         chan *proposalJob
	quit         chan struct{}
	queueTimeout time.Duration
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

type proposalJob struct {
	ctx  context.Context
	gen  segment.Generator
	img  *image.NRGBA
	done chan proposalResult
}

type proposalResult struct {
	masks []segment.Mask
	err   error
}

func NewWorkerPool(workers int, queueTimeout time.Duration) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	p := &WorkerPool{
		jobs:         make(chan *proposalJob),
		quit:         make(chan struct{}),
		queueTimeout: queueTimeout,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return p
}

// Propose 把生成任务交给 worker 并等待结果，timeout <= 0 表示不限时
func (p *WorkerPool) Propose(ctx context.Context, timeout time.Duration, gen segment.Generator, img *image.NRGBA) ([]segment.Mask, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	job := &proposalJob{ctx: ctx, gen: gen, img: img, done: make(chan proposalResult, 1)}

	var queueDeadline <-chan time.Time
	if p.queueTimeout > 0 {
		timer := time.NewTimer(p.queueTimeout)
		defer timer.Stop()
		queueDeadline = timer.C
	}

	select {
	case p.jobs <- job:
	case <-queueDeadline:
		return nil, ErrQueueTimeout
	case <-ctx.Done():
		return nil, contextError(ctx.Err())
	case <-p.quit:
		return nil, ErrPoolClosed
	}

	select {
	case r := <-job.done:
		return r.masks, r.err
	case <-ctx.Done():
		return nil, contextError(ctx.Err())
	}
}

// contextError 只有超过截止时间才算超时，调用方取消（如客户端断开）单独区分
func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrProposalTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrProposalCanceled, err)
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			job.done <- p.run(id, job)
		case <-p.quit:
			return
		}
	}
}

func (p *WorkerPool) run(id int, job *proposalJob) (res proposalResult) {
	if err := job.ctx.Err(); err != nil {
		return proposalResult{err: contextError(err)}
	}
	defer func() {
		if r := recover(); r != nil {
			utils.Logger.Error("mask proposal panicked", zap.Int("worker", id), zap.Any("panic", r))
			res = proposalResult{err: fmt.Errorf("mask proposal panicked: %v", r)}
		}
	}()

	start := time.Now()
	masks, err := job.gen.Generate(job.ctx, job.img)
	utils.Logger.Debug("mask proposal finished",
		zap.Int("worker", id),
		zap.Int("masks", len(masks)),
		zap.Duration("duration", time.Since(start)),
		zap.Error(err))
	return proposalResult{masks: masks, err: err}
}

// Close 停止接收新任务，并等待正在运行的任务结束或 ctx 到期
func (p *WorkerPool) Close(ctx context.Context) error {
	p.closeOnce.Do(func() { close(p.quit) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
