package main

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CloneITai/CloneITLocalAis/segment"
	"github.com/CloneITai/CloneITLocalAis/service"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("photos", "shoe_cutout.png"), outputPath(filepath.Join("photos", "shoe.JPG"), ""))
	assert.Equal(t, filepath.Join("out", "shoe_cutout.png"), outputPath("shoe.png", "out"))
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfg, err := loadConfig(options{model: "grabcut", kernel: 11, timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "grabcut", cfg.Segment.Model)
	assert.Equal(t, 11, cfg.Matte.KernelSize)
	assert.Equal(t, time.Second, cfg.Segment.Timeout)

	_, err = loadConfig(options{kernel: 10})
	assert.Error(t, err)
}

func TestProcessFile(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()
	src := filepath.Join(dir, "shoe.png")
	img := image.NewNRGBA(image.Rect(0, 0, 6, 6))
	data, err := service.EncodePNG(img)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(src, data, 0o644))

	reg := segment.NewRegistry()
	reg.Register("fake", segment.Static("fake", segment.GeneratorFunc(
		func(context.Context, *image.NRGBA) ([]segment.Mask, error) {
			return []segment.Mask{segment.NewMask(6, 6, make([]bool, 36))}, nil
		})))
	pool := service.NewWorkerPool(1, 0)
	defer pool.Close(context.Background())
	pipeline := service.NewPipeline(reg, pool, service.PipelineOptions{Model: "fake"})

	var out bytes.Buffer
	allowed := []string{".png"}
	require.NoError(t, processFile(context.Background(), pipeline, allowed, src, "", &out))
	assert.FileExists(t, filepath.Join(dir, "shoe_cutout.png"))
	assert.Contains(t, out.String(), "shoe_cutout.png")

	err = processFile(context.Background(), pipeline, allowed, filepath.Join(dir, "a.gif"), "", &out)
	assert.Equal(t, service.KindValidation, service.KindOf(err))
}
