package segment

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMask_Area(t *testing.T) {
	m := NewMask(3, 2, []bool{true, false, true, false, false, true})
	assert.Equal(t, 3, m.Area)
	assert.True(t, m.At(2, 1))
	assert.False(t, m.At(1, 0))
	assert.True(t, m.Fits(image.Rect(0, 0, 3, 2)))
	assert.False(t, m.Fits(image.Rect(0, 0, 2, 3)))
}

func TestMaskFromGray(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 2, 2))
	g.Pix = []uint8{0, 200, 128, 255}

	m := MaskFromGray(g, 127)
	assert.Equal(t, []bool{false, true, true, true}, m.Occupancy)
	assert.Equal(t, 3, m.Area)
	assert.Equal(t, []uint8{0, 255, 255, 255}, m.Gray().Pix)
}

type countingModel struct {
	closed atomic.Bool
}

func (m *countingModel) Generate(context.Context, *image.NRGBA) ([]Mask, error) { return nil, nil }
func (m *countingModel) Name() string                                           { return "counting" }
func (m *countingModel) Close() error {
	m.closed.Store(true)
	return nil
}

func TestRegistry_LoadsOnce(t *testing.T) {
	var loads atomic.Int32
	model := &countingModel{}

	r := NewRegistry()
	r.Register("m", func(context.Context) (Model, error) {
		loads.Add(1)
		return model, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Get(context.Background(), "m")
			assert.NoError(t, err)
			assert.Same(t, model, got)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
	assert.True(t, r.Loaded("m"))

	require.NoError(t, r.Close())
	assert.True(t, model.closed.Load())

	_, err := r.Get(context.Background(), "m")
	assert.ErrorIs(t, err, ErrRegistryClosed)
}

func TestRegistry_RetriesFailedLoad(t *testing.T) {
	var loads atomic.Int32
	r := NewRegistry()
	r.Register("flaky", func(context.Context) (Model, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("checkpoint missing")
		}
		return &countingModel{}, nil
	})

	_, err := r.Get(context.Background(), "flaky")
	require.ErrorIs(t, err, ErrModelLoadFailed)
	assert.Contains(t, err.Error(), "checkpoint missing")
	assert.False(t, r.Loaded("flaky"))

	_, err = r.Get(context.Background(), "flaky")
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestRegistry_UnknownModel(t *testing.T) {
	_, err := NewRegistry().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestStatic(t *testing.T) {
	gen := GeneratorFunc(func(context.Context, *image.NRGBA) ([]Mask, error) {
		return []Mask{NewMask(1, 1, []bool{true})}, nil
	})
	r := NewRegistry()
	r.Register("static", Static("static", gen))

	m, err := r.Get(context.Background(), "static")
	require.NoError(t, err)
	assert.Equal(t, "static", m.Name())

	masks, err := m.Generate(context.Background(), image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	assert.Len(t, masks, 1)
}

func TestResolvePath(t *testing.T) {
	got, err := ResolvePath("/opt/cutout", "segment-anything/sam.pth")
	require.NoError(t, err)
	assert.Equal(t, "/opt/cutout/segment-anything/sam.pth", got)

	got, err = ResolvePath("/opt/cutout", "/models/sam.pth")
	require.NoError(t, err)
	assert.Equal(t, "/models/sam.pth", got)

	got, err = ResolvePath("", "sam.pth")
	require.NoError(t, err)
	assert.Equal(t, "sam.pth", filepath.Base(got))
}
