// Package models 把配置中的模型名映射到具体的候选掩码来源并注册到 Registry。
package models

import (
	"fmt"
	"strings"

	"github.com/CloneITai/CloneITLocalAis/config"
	"github.com/CloneITai/CloneITLocalAis/segment"
	"github.com/CloneITai/CloneITLocalAis/segment/grabcut"
	"github.com/CloneITai/CloneITLocalAis/segment/sam"
)

const (
	GrabCut   = "grabcut"
	samPrefix = "sam_"
)

// checkpoints 是官方发布的 SAM 权重文件名
var checkpoints = map[string]string{
	"sam_vit_b": "segment-anything/sam_vit_b_01ec64.pth",
	"sam_vit_l": "segment-anything/sam_vit_l_0b3195.pth",
	"sam_vit_h": "segment-anything/sam_vit_h_4b8939.pth",
}

// Register 注册 grabcut 以及所有 SAM 变体。配置的模型使用配置里的 checkpoint，
// 其他变体使用默认文件名；相对路径都按 install_dir 解析。
func Register(reg *segment.Registry, cfg config.SegmentConfig) error {
	cascade, err := segment.ResolvePath(cfg.InstallDir, cfg.Cascade)
	if err != nil {
		return err
	}
	reg.Register(GrabCut, grabcut.Loader(grabcut.Options{
		Name:    GrabCut,
		MaxSide: cfg.MaxSide,
		Cascade: cascade,
	}))

	names := make(map[string]string, len(checkpoints)+1)
	for name, ckpt := range checkpoints {
		names[name] = ckpt
	}
	if strings.HasPrefix(cfg.Model, samPrefix) {
		names[cfg.Model] = cfg.Checkpoint
	}

	for name, ckpt := range names {
		path, err := segment.ResolvePath(cfg.InstallDir, ckpt)
		if err != nil {
			return err
		}
		reg.Register(name, sam.Loader(sam.Options{
			Name:       name,
			Endpoint:   cfg.Endpoint,
			Checkpoint: path,
			MaxSide:    cfg.MaxSide,
			Timeout:    cfg.Timeout,
		}))
	}

	if !IsKnown(reg, cfg.Model) {
		return fmt.Errorf("%w: %s", segment.ErrModelNotFound, cfg.Model)
	}
	return nil
}

// IsKnown 判断模型名是否已注册
func IsKnown(reg *segment.Registry, name string) bool {
	for _, n := range reg.Names() {
		if n == name {
			return true
		}
	}
	return false
}
