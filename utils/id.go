package utils

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// TempPrefix 是请求临时文件的统一前缀，清理任务据此识别残留文件
const TempPrefix = "cutout_"

// TempName 生成按时间排序的临时文件名
func TempName(ext string) string {
	return TempPrefix + ksuid.New().String() + ext
}

// RequestID 生成请求ID
func RequestID() string {
	return uuid.NewString()
}
