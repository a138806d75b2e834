package service

import (
	"image"
	"image/color"

	"github.com/CloneITai/CloneITLocalAis/segment"
)

// rectMask 返回 w×h 掩码，r 内为前景
func rectMask(w, h int, r image.Rectangle) segment.Mask {
	occ := make([]bool, w*h)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			occ[y*w+x] = true
		}
	}
	return segment.NewMask(w, h, occ)
}

func fullMask(w, h int) segment.Mask {
	return rectMask(w, h, image.Rect(0, 0, w, h))
}

// productImage 纯色背景中央一个白色方块
func productImage(size, square int, bg color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	off := (size - square) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := bg
			if x >= off && x < off+square && y >= off && y < off+square {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
