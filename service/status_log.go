package service

import (
	"fmt"

	"go.uber.org/zap"
)

// StatusLog 是单次请求内按顺序追加的步骤记录，同时写入结构化日志
type StatusLog struct {
	steps  []string
	logger *zap.Logger
}

func NewStatusLog(logger *zap.Logger) *StatusLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusLog{logger: logger}
}

func (l *StatusLog) Add(format string, args ...any) {
	step := fmt.Sprintf(format, args...)
	l.steps = append(l.steps, step)
	l.logger.Info("pipeline step", zap.Int("step", len(l.steps)), zap.String("status", step))
}

// Steps 返回步骤副本
func (l *StatusLog) Steps() []string {
	out := make([]string, len(l.steps))
	copy(out, l.steps)
	return out
}
