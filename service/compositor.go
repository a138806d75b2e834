package service

import (
	"fmt"
	"image"

	"github.com/CloneITai/CloneITLocalAis/segment"
)

// Compose 生成 RGBA 结果：颜色只在硬掩码内保留，其余置零；alpha 直接取羽化后的 matte。
// 硬边界外的羽化带颜色为黑、alpha 非零。
func Compose(src *image.NRGBA, mask segment.Mask, matte *image.Gray) (*image.NRGBA, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if !mask.Fits(b) {
		return nil, fmt.Errorf("%w: image %dx%d, mask %dx%d", ErrSizeMismatch, w, h, mask.Width, mask.Height)
	}
	mb := matte.Bounds()
	if mb.Dx() != w || mb.Dy() != h {
		return nil, fmt.Errorf("%w: image %dx%d, matte %dx%d", ErrSizeMismatch, w, h, mb.Dx(), mb.Dy())
	}

	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		so := src.PixOffset(b.Min.X, b.Min.Y+y)
		srcRow := src.Pix[so : so+w*4]
		mo := matte.PixOffset(mb.Min.X, mb.Min.Y+y)
		matteRow := matte.Pix[mo : mo+w]
		outRow := out.Pix[y*out.Stride : y*out.Stride+w*4]
		for x := 0; x < w; x++ {
			o := x * 4
			if mask.Occupancy[y*w+x] {
				outRow[o] = srcRow[o]
				outRow[o+1] = srcRow[o+1]
				outRow[o+2] = srcRow[o+2]
			}
			outRow[o+3] = matteRow[x]
		}
	}
	return out, nil
}
