// Package segment 定义候选掩码来源（分割模型）的契约以及进程级模型注册表。
package segment

import (
	"context"
	"errors"
	"image"
)

var (
	ErrModelNotFound   = errors.New("segment: model not registered")
	ErrModelLoadFailed = errors.New("segment: failed to load model")
	ErrRegistryClosed  = errors.New("segment: registry is closed")
	ErrMaskSize        = errors.New("segment: mask size does not match source image")
)

// Mask 是一个候选区域：与源图同尺寸的布尔占用网格，Area 为 true 的像素数
type Mask struct {
	Width     int
	Height    int
	Occupancy []bool
	Area      int
}

// NewMask 由占用网格构造掩码并计算面积
func NewMask(width, height int, occupancy []bool) Mask {
	m := Mask{Width: width, Height: height, Occupancy: occupancy}
	m.Area = m.Count()
	return m
}

// MaskFromGray 把灰度图中大于 threshold 的像素视为前景
func MaskFromGray(g *image.Gray, threshold uint8) Mask {
	b := g.Bounds()
	w, h := b.Dx(), b.Dy()
	occ := make([]bool, w*h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			occ[y*w+x] = v > threshold
		}
	}
	return NewMask(w, h, occ)
}

// At 返回 (x, y) 处是否为前景
func (m Mask) At(x, y int) bool {
	return m.Occupancy[y*m.Width+x]
}

// Count 统计前景像素数
func (m Mask) Count() int {
	n := 0
	for _, v := range m.Occupancy {
		if v {
			n++
		}
	}
	return n
}

// Bounds 返回掩码对应的图像范围
func (m Mask) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.Width, m.Height)
}

// Fits 判断掩码是否与给定尺寸一致
func (m Mask) Fits(r image.Rectangle) bool {
	return m.Width == r.Dx() && m.Height == r.Dy() && len(m.Occupancy) == m.Width*m.Height
}

// Gray 把掩码渲染成 0/255 灰度图
func (m Mask) Gray() *image.Gray {
	g := image.NewGray(m.Bounds())
	for i, v := range m.Occupancy {
		if v {
			g.Pix[i] = 255
		}
	}
	return g
}

// Generator 对 RGB 图像生成候选掩码。实现可能很慢且不可中途取消，
// 调用方负责超时与并发控制。
type Generator interface {
	Generate(ctx context.Context, img *image.NRGBA) ([]Mask, error)
}

// GeneratorFunc 让普通函数满足 Generator
type GeneratorFunc func(ctx context.Context, img *image.NRGBA) ([]Mask, error)

func (f GeneratorFunc) Generate(ctx context.Context, img *image.NRGBA) ([]Mask, error) {
	return f(ctx, img)
}

// Model 是加载完成、只读的模型句柄
type Model interface {
	Generator
	Name() string
	Close() error
}

// Loader 加载一个模型；每个名称在进程生命周期内最多成功调用一次
type Loader func(ctx context.Context) (Model, error)
