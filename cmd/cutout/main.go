// Command cutout 在本地文件上运行去背景流水线，结果写到 <name>_cutout.png。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/CloneITai/CloneITLocalAis/config"
	"github.com/CloneITai/CloneITLocalAis/segment"
	"github.com/CloneITai/CloneITLocalAis/segment/models"
	"github.com/CloneITai/CloneITLocalAis/service"
	"github.com/CloneITai/CloneITLocalAis/utils"
	"github.com/fatih/color"
	"go.uber.org/zap"
)

const outputSuffix = "_cutout.png"

type options struct {
	configPath string
	model      string
	kernel     int
	outDir     string
	timeout    time.Duration
	verbose    bool
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to config.yaml (defaults are used when empty)")
	flag.StringVar(&opts.model, "model", "", "model name, overrides segment.model")
	flag.IntVar(&opts.kernel, "kernel", 0, "feather kernel size (odd), overrides matte.kernel_size")
	flag.StringVar(&opts.outDir, "out", "", "output directory (defaults to the input's directory)")
	flag.DurationVar(&opts.timeout, "timeout", 0, "mask proposal timeout, overrides segment.timeout")
	flag.BoolVar(&opts.verbose, "v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: cutout [flags] image.png|image.jpg ...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(context.Background(), opts, flag.Args(), os.Stdout); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "cutout: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(opts options) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if opts.model != "" {
		cfg.Segment.Model = opts.model
	}
	if opts.kernel != 0 {
		cfg.Matte.KernelSize = opts.kernel
	}
	if opts.timeout != 0 {
		cfg.Segment.Timeout = opts.timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, opts options, inputs []string, out io.Writer) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	// 步骤已经打印到终端，只有 -v 时才输出结构化日志
	if opts.verbose {
		if err := utils.InitLogger("debug", cfg.Log); err != nil {
			return err
		}
		defer utils.Sync()
	}

	registry := segment.NewRegistry()
	defer registry.Close()
	if err := models.Register(registry, cfg.Segment); err != nil {
		return err
	}

	pool := service.NewWorkerPool(1, 0)
	defer pool.Close(context.Background())

	pipeline := service.NewPipeline(registry, pool, service.PipelineOptions{
		Model:      cfg.Segment.Model,
		KernelSize: cfg.Matte.KernelSize,
		Timeout:    cfg.Segment.Timeout,
	})

	failed := 0
	for _, input := range inputs {
		if err := processFile(ctx, pipeline, cfg.Upload.AllowedExts, input, opts.outDir, out); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(inputs))
	}
	return nil
}

func processFile(ctx context.Context, pipeline *service.Pipeline, allowed []string, input, outDir string, out io.Writer) error {
	header := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.FgHiBlack)
	header.Fprintf(out, "━━━ %s ━━━\n", input)

	ext := strings.ToLower(filepath.Ext(input))
	if !slices.Contains(allowed, ext) {
		err := service.NewValidationError(fmt.Sprintf("unsupported file type %q", ext))
		printFailure(out, err)
		return err
	}

	res, err := pipeline.Run(service.WithRequestID(ctx, utils.RequestID()), input)
	if err != nil {
		var pe *service.PipelineError
		if errors.As(err, &pe) {
			for _, step := range pe.Steps {
				dim.Fprintf(out, "  · %s\n", step)
			}
		}
		printFailure(out, err)
		return err
	}

	for _, step := range res.Steps {
		dim.Fprintf(out, "  · %s\n", step)
	}

	dst := outputPath(input, outDir)
	if err := os.WriteFile(dst, res.Image, 0o644); err != nil {
		printFailure(out, err)
		return err
	}

	color.New(color.FgGreen).Fprintf(out, "  ✓ %s", dst)
	dim.Fprintf(out, " (%dx%d, %d candidates, %v)\n",
		res.Width, res.Height, res.CandidateCount, res.Duration.Round(time.Millisecond))
	utils.Logger.Debug("cutout written", zap.String("input", input), zap.String("output", dst))
	return nil
}

func printFailure(out io.Writer, err error) {
	color.New(color.FgRed).Fprintf(out, "  ✗ [%s] %v\n", service.KindOf(err), err)
}

// outputPath 返回 <dir>/<name>_cutout.png，dir 默认为输入文件所在目录
func outputPath(input, outDir string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if outDir == "" {
		outDir = filepath.Dir(input)
	}
	return filepath.Join(outDir, name+outputSuffix)
}
