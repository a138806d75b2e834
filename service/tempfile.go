package service

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/CloneITai/CloneITLocalAis/utils"
	"go.uber.org/zap"
)

// withTempFile 把 r 写入工作目录下的请求级临时文件，执行 fn 后无论成败都删除该文件
func withTempFile(dir, ext string, r io.Reader, fn func(path string) error) (err error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	path := filepath.Join(dir, utils.TempName(ext))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			utils.Logger.Warn("failed to delete temp file", zap.String("file", path), zap.Error(rmErr))
		} else {
			utils.Logger.Debug("temp file deleted", zap.String("file", path))
		}
	}()

	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	return fn(path)
}
