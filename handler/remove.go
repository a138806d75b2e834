package handler

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/CloneITai/CloneITLocalAis/config"
	"github.com/CloneITai/CloneITLocalAis/middleware"
	"github.com/CloneITai/CloneITLocalAis/model"
	"github.com/CloneITai/CloneITLocalAis/service"
	"github.com/CloneITai/CloneITLocalAis/utils"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Remover 是 handler 依赖的流水线能力
type Remover interface {
	RunUpload(ctx context.Context, r io.Reader, ext string) (*service.Result, error)
	Model() string
}

type RemoveHandler struct {
	cfg      *config.Config
	pipeline Remover
	cache    service.ResultCache
}

// NewRemoveHandler cache 为 nil 时不使用缓存
func NewRemoveHandler(cfg *config.Config, pipeline Remover, cache service.ResultCache) *RemoveHandler {
	return &RemoveHandler{
		cfg:      cfg,
		pipeline: pipeline,
		cache:    cache,
	}
}

// Remove 处理去背景请求
func (h *RemoveHandler) Remove(c *gin.Context) {
	requestID := c.GetString(middleware.RequestIDKey)

	file, err := formFile(c)
	if err != nil {
		h.fail(c, service.NewValidationError("no image uploaded: expected multipart field \"file\""))
		return
	}

	// 扩展名检查先于任何解码与模型工作
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !slices.Contains(h.cfg.Upload.AllowedExts, ext) {
		h.fail(c, service.NewValidationError(fmt.Sprintf("unsupported file type %q, allowed: %s",
			ext, strings.Join(h.cfg.Upload.AllowedExts, ", "))))
		return
	}

	if h.cfg.Upload.MaxSize > 0 && file.Size > h.cfg.Upload.MaxSize {
		h.fail(c, service.NewValidationError(fmt.Sprintf("file too large: %d bytes exceeds limit of %d MB",
			file.Size, h.cfg.Upload.MaxSize/(1024*1024))))
		return
	}

	data, err := readUpload(file, h.cfg.Upload.MaxSize)
	if err != nil {
		h.fail(c, service.NewValidationError(err.Error()))
		return
	}
	md5 := utils.BytesMD5(data)

	utils.Logger.Info("file uploaded",
		zap.String("request_id", requestID),
		zap.String("filename", file.Filename),
		zap.String("md5", md5),
		zap.Int64("size", file.Size))

	ctx := service.WithRequestID(c.Request.Context(), requestID)
	modelName := h.pipeline.Model()

	if h.cache != nil {
		cached, err := h.cache.GetResult(ctx, modelName, md5)
		if err != nil {
			utils.Logger.Warn("failed to get cache", zap.String("request_id", requestID), zap.Error(err))
		}
		if cached != nil {
			utils.Logger.Info("cache hit", zap.String("key", service.CacheKey(modelName, md5)))
			h.succeed(c, cached, true)
			return
		}
	}

	result, err := h.pipeline.RunUpload(ctx, bytes.NewReader(data), ext)
	if err != nil {
		h.fail(c, err)
		return
	}

	out := &service.CachedResult{
		Image:  result.Image,
		Width:  result.Width,
		Height: result.Height,
		Steps:  result.Steps,
	}
	if h.cache != nil {
		if err := h.cache.SetResult(ctx, modelName, md5, out); err != nil {
			utils.Logger.Warn("failed to set cache", zap.String("request_id", requestID), zap.Error(err))
		}
	}

	h.succeed(c, out, false)
}

func formFile(c *gin.Context) (*multipart.FileHeader, error) {
	file, err := c.FormFile("file")
	if err == nil {
		return file, nil
	}
	// 兼容旧前端使用的字段名
	if legacy, legacyErr := c.FormFile("image"); legacyErr == nil {
		return legacy, nil
	}
	return nil, err
}

func readUpload(file *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("file too large: exceeds limit of %d MB", limit/(1024*1024))
	}
	return data, nil
}

func (h *RemoveHandler) succeed(c *gin.Context, out *service.CachedResult, cached bool) {
	if wantsPNG(c) {
		c.Data(http.StatusOK, "image/png", out.Image)
		return
	}

	message := "Background removed successfully"
	if cached {
		message += " (cached)"
	}
	c.JSON(http.StatusOK, model.RemoveResponse{
		Status:    model.StatusSuccess,
		Message:   message,
		Image:     hex.EncodeToString(out.Image),
		Width:     out.Width,
		Height:    out.Height,
		Cached:    cached,
		RequestID: c.GetString(middleware.RequestIDKey),
		Steps:     nonNil(out.Steps),
	})
}

func (h *RemoveHandler) fail(c *gin.Context, err error) {
	resp := model.ErrorResponse{
		Status:    model.StatusError,
		Kind:      string(service.KindOf(err)),
		Message:   err.Error(),
		RequestID: c.GetString(middleware.RequestIDKey),
		Steps:     []string{},
	}

	var pe *service.PipelineError
	if errors.As(err, &pe) {
		resp.Reason = pe.Reason
		resp.Message = pe.Message
		resp.Steps = nonNil(pe.Steps)
	}

	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	} else {
		utils.Logger.Info("request rejected",
			zap.String("request_id", resp.RequestID),
			zap.String("kind", resp.Kind),
			zap.String("message", resp.Message))
	}
	c.JSON(status, resp)
}

// StatusFor 把失败分类映射成 HTTP 状态码
func StatusFor(err error) int {
	var pe *service.PipelineError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError
	}
	switch {
	case pe.Kind == service.KindValidation, pe.Kind == service.KindDecode:
		return http.StatusBadRequest
	case pe.Kind == service.KindSegmentation && pe.Reason == service.ReasonTimeout:
		return http.StatusGatewayTimeout
	case pe.Kind == service.KindSegmentation && pe.Reason == service.ReasonQueueTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func wantsPNG(c *gin.Context) bool {
	if strings.EqualFold(c.Query("format"), "png") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "image/png")
}

func nonNil(steps []string) []string {
	if steps == nil {
		return []string{}
	}
	return steps
}
