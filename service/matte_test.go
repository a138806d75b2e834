package service

import (
	"image"
	"testing"

	"github.com/CloneITai/CloneITLocalAis/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMatte_DimensionsAndRange(t *testing.T) {
	masks := []segment.Mask{
		rectMask(37, 23, image.Rect(5, 5, 20, 15)),
		rectMask(1, 1, image.Rect(0, 0, 1, 1)),
		rectMask(3, 50, image.Rect(0, 10, 2, 20)),
	}
	for _, m := range masks {
		matte, err := BuildMatte(m, DefaultKernelSize)
		require.NoError(t, err)
		assert.Equal(t, m.Width, matte.Bounds().Dx())
		assert.Equal(t, m.Height, matte.Bounds().Dy())
		assert.Len(t, matte.Pix, m.Width*m.Height)
	}
}

func TestBuildMatte_FullFrameStaysOpaque(t *testing.T) {
	matte, err := BuildMatte(fullMask(40, 30), DefaultKernelSize)
	require.NoError(t, err)
	for i, v := range matte.Pix {
		require.Equal(t, uint8(255), v, "pixel %d", i)
	}
}

func TestBuildMatte_EmptyStaysTransparent(t *testing.T) {
	matte, err := BuildMatte(segment.NewMask(20, 20, make([]bool, 400)), DefaultKernelSize)
	require.NoError(t, err)
	for _, v := range matte.Pix {
		require.Equal(t, uint8(0), v)
	}
}

func TestBuildMatte_FeathersEdge(t *testing.T) {
	mask := rectMask(100, 100, image.Rect(30, 30, 70, 70))
	matte, err := BuildMatte(mask, DefaultKernelSize)
	require.NoError(t, err)

	at := func(x, y int) uint8 { return matte.GrayAt(x, y).Y }

	assert.Equal(t, uint8(255), at(50, 50), "interior")
	assert.Equal(t, uint8(0), at(5, 5), "far background")

	// 硬边界两侧形成渐变带
	inside, outside := at(30, 50), at(29, 50)
	assert.Greater(t, inside, uint8(0))
	assert.Less(t, inside, uint8(255))
	assert.Greater(t, outside, uint8(0))
	assert.GreaterOrEqual(t, inside, outside)

	// 沿水平方向单调，且关于方块中心对称
	for x := 20; x < 50; x++ {
		assert.LessOrEqual(t, at(x, 50), at(x+1, 50))
		assert.Equal(t, at(x, 50), at(99-x, 50))
	}
}

func TestBuildMatte_Errors(t *testing.T) {
	for _, size := range []int{0, -3, 4, 20} {
		_, err := BuildMatte(fullMask(4, 4), size)
		assert.ErrorIs(t, err, ErrKernelSize)
	}

	broken := segment.Mask{Width: 4, Height: 4, Occupancy: make([]bool, 3)}
	_, err := BuildMatte(broken, 3)
	assert.ErrorIs(t, err, ErrSizeMismatch)
}
