package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CloneITai/CloneITLocalAis/config"
	"github.com/CloneITai/CloneITLocalAis/handler"
	"github.com/CloneITai/CloneITLocalAis/middleware"
	"github.com/CloneITai/CloneITLocalAis/segment"
	"github.com/CloneITai/CloneITLocalAis/segment/models"
	"github.com/CloneITai/CloneITLocalAis/service"
	"github.com/CloneITai/CloneITLocalAis/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	BuildID   = "unknown"
	GitCommit = "unknown"
	GitBranch = "unknown"
)

func main() {
	// 加载配置
	cfg := config.New()

	// 初始化日志
	if err := utils.InitLogger(cfg.Server.Mode, cfg.Log); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.Sync()

	utils.Logger.Info("starting cutout server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("git_branch", GitBranch),
		zap.String("model", cfg.Segment.Model))

	// 确保工作目录存在
	if err := os.MkdirAll(cfg.Upload.WorkDir, 0755); err != nil {
		utils.Logger.Fatal("failed to create work directory", zap.Error(err))
	}

	// 模型注册表：首次请求时加载，进程退出时释放
	registry := segment.NewRegistry()
	if err := models.Register(registry, cfg.Segment); err != nil {
		utils.Logger.Fatal("failed to register models", zap.Error(err))
	}

	pool := service.NewWorkerPool(cfg.Segment.MaxConcurrent, cfg.Segment.QueueTimeout)
	pipeline := service.NewPipeline(registry, pool, service.PipelineOptions{
		Model:      cfg.Segment.Model,
		KernelSize: cfg.Matte.KernelSize,
		Timeout:    cfg.Segment.Timeout,
		WorkDir:    cfg.Upload.WorkDir,
	})

	// 初始化Redis（可选）
	var cache service.ResultCache
	if cfg.Cache.Enabled {
		redisService := service.NewRedisService(&cfg.Cache)
		if err := redisService.Ping(context.Background()); err != nil {
			utils.Logger.Warn("redis connection failed, cache disabled", zap.Error(err))
		} else {
			utils.Logger.Info("redis connected successfully")
			cache = redisService
		}
		defer redisService.Close()
	}

	// 残留临时文件清理
	sweeper := service.NewSweeper(cfg.Upload.WorkDir, cfg.Sweep.MaxAge)
	if cfg.Sweep.Enabled {
		sweeper.Sweep()
		if err := sweeper.Start(cfg.Sweep.Schedule); err != nil {
			utils.Logger.Fatal("invalid sweep schedule", zap.String("schedule", cfg.Sweep.Schedule), zap.Error(err))
		}
	}

	removeHandler := handler.NewRemoveHandler(cfg, pipeline, cache)

	// 设置Gin模式
	gin.SetMode(cfg.Server.Mode)

	// 创建路由
	r := gin.New()
	r.MaxMultipartMemory = cfg.Upload.MaxSize
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS())

	// 健康检查和版本信息
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"version": Version,
			"model":   cfg.Segment.Model,
			"loaded":  registry.Loaded(cfg.Segment.Model),
		})
	})

	r.GET("/version", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"version":    Version,
			"build_time": BuildTime,
			"build_id":   BuildID,
			"git_commit": GitCommit,
			"git_branch": GitBranch,
		})
	})

	// API路由
	api := r.Group("/api/v1")
	{
		api.POST("/remove-background", removeHandler.Remove)
	}
	r.POST("/remove-background", removeHandler.Remove)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		utils.Logger.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	utils.Logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		utils.Logger.Error("server shutdown failed", zap.Error(err))
	}
	if cfg.Sweep.Enabled {
		sweeper.Stop()
	}
	if err := pool.Close(ctx); err != nil {
		utils.Logger.Warn("worker pool did not drain", zap.Error(err))
	}
	if err := registry.Close(); err != nil {
		utils.Logger.Warn("failed to release models", zap.Error(err))
	}
	sweeper.Sweep()

	utils.Logger.Info("server stopped")
}
