package service

import (
	"fmt"
	"image"

	"github.com/CloneITai/CloneITLocalAis/segment"
	"gocv.io/x/gocv"
)

// DefaultKernelSize 羽化核边长
const DefaultKernelSize = 21

// BuildMatte 把硬掩码变成羽化的 alpha：前景 255、背景 0，再做 kernelSize×kernelSize 高斯模糊。
// sigma 取 0 由 OpenCV 按核大小推导；边界为 BorderDefault（reflect-101），
// 因此全前景掩码在图像边缘依旧是 255。
func BuildMatte(mask segment.Mask, kernelSize int) (*image.Gray, error) {
	if kernelSize <= 0 || kernelSize%2 == 0 {
		return nil, fmt.Errorf("%w: %d", ErrKernelSize, kernelSize)
	}
	w, h := mask.Width, mask.Height
	if len(mask.Occupancy) != w*h {
		return nil, fmt.Errorf("%w: mask %dx%d has %d cells", ErrSizeMismatch, w, h, len(mask.Occupancy))
	}

	field := mask.Gray()
	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, field.Pix)
	if err != nil {
		return nil, fmt.Errorf("build mask mat: %w", err)
	}
	defer src.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Point{X: kernelSize, Y: kernelSize}, 0, 0, gocv.BorderDefault)

	matte := image.NewGray(image.Rect(0, 0, w, h))
	copy(matte.Pix, blurred.ToBytes())
	return matte, nil
}
