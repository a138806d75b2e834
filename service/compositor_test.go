package service

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompose_HardColourSoftAlpha(t *testing.T) {
	src := productImage(100, 40, color.NRGBA{R: 10, G: 120, B: 200, A: 255})
	mask := rectMask(100, 100, image.Rect(30, 30, 70, 70))
	matte, err := BuildMatte(mask, DefaultKernelSize)
	require.NoError(t, err)

	out, err := Compose(src, mask, matte)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), out.Bounds())

	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			c := out.NRGBAAt(x, y)
			assert.Equal(t, matte.GrayAt(x, y).Y, c.A)
			if mask.At(x, y) {
				s := src.NRGBAAt(x, y)
				assert.Equal(t, [3]uint8{s.R, s.G, s.B}, [3]uint8{c.R, c.G, c.B})
			} else {
				assert.Equal(t, [3]uint8{0, 0, 0}, [3]uint8{c.R, c.G, c.B})
			}
		}
	}

	// 硬边界外一像素：颜色为黑，但 alpha 来自羽化带
	edge := out.NRGBAAt(29, 50)
	assert.Equal(t, uint8(0), edge.R)
	assert.Greater(t, edge.A, uint8(0))
}

func TestCompose_SubImageSource(t *testing.T) {
	big := productImage(20, 4, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	sub := big.SubImage(image.Rect(5, 5, 15, 15)).(*image.NRGBA)
	mask := fullMask(10, 10)
	matte, err := BuildMatte(mask, 3)
	require.NoError(t, err)

	out, err := Compose(sub, mask, matte)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), out.Bounds())
	assert.Equal(t, big.NRGBAAt(5, 5), out.NRGBAAt(0, 0))
	assert.Equal(t, big.NRGBAAt(10, 10), out.NRGBAAt(5, 5))
}

func TestCompose_SizeMismatch(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 10, 10))

	_, err := Compose(src, fullMask(9, 10), image.NewGray(image.Rect(0, 0, 10, 10)))
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, err = Compose(src, fullMask(10, 10), image.NewGray(image.Rect(0, 0, 10, 11)))
	assert.ErrorIs(t, err, ErrSizeMismatch)
}
