package service

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CloneITai/CloneITLocalAis/utils"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper 定期删除工作目录中超时残留的请求临时文件（进程崩溃时 defer 来不及执行）
type Sweeper struct {
	dir    string
	maxAge time.Duration
	cron   *cron.Cron
	now    func() time.Time
}

func NewSweeper(dir string, maxAge time.Duration) *Sweeper {
	return &Sweeper{
		dir:    dir,
		maxAge: maxAge,
		cron:   cron.New(),
		now:    time.Now,
	}
}

// Start 按 cron 表达式（支持 "@every 10m"）调度清理
func (s *Sweeper) Start(schedule string) error {
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop 停止调度并等待正在运行的清理结束
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep 删除早于 maxAge 的临时文件，返回删除数量
func (s *Sweeper) Sweep() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			utils.Logger.Warn("failed to list work dir", zap.String("dir", s.dir), zap.Error(err))
		}
		return 0
	}

	cutoff := s.now().Add(-s.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), utils.TempPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			utils.Logger.Warn("failed to remove stale temp file", zap.String("file", path), zap.Error(err))
			continue
		}
		removed++
	}

	if removed > 0 {
		utils.Logger.Info("stale temp files removed", zap.String("dir", s.dir), zap.Int("count", removed))
	}
	return removed
}
