package segment

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolvePath 把相对路径解析到安装目录下；installDir 为空时使用可执行文件所在目录
func ResolvePath(installDir, path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return path, nil
	}
	if installDir == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("locate executable: %w", err)
		}
		installDir = filepath.Dir(exe)
	}
	return filepath.Join(installDir, path), nil
}
