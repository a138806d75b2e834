// Package sam 通过 HTTP 调用 Segment Anything 推理服务生成候选掩码。
// 推理服务负责加载 checkpoint 并运行自动掩码生成器，这里只做传输与尺寸换算。
package sam

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/CloneITai/CloneITLocalAis/segment"
	"github.com/CloneITai/CloneITLocalAis/utils"
	"github.com/CloneITai/CloneITLocalAis/utils/httpclient"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	loadPath     = "/load"
	generatePath = "/generate"

	// 推理服务返回的掩码是 0/255 PNG，放大时用最近邻，这里的阈值只用于二值化
	maskThreshold = 127
)

type Options struct {
	Name       string
	Endpoint   string
	Checkpoint string
	Device     string
	MaxSide    int
	Timeout    time.Duration
}

type Client struct {
	opts Options
	cli  httpclient.IClient
}

type loadReq struct {
	ModelType  string `json:"model_type"`
	Checkpoint string `json:"checkpoint"`
	Device     string `json:"device"`
}

type loadResp struct {
	Status string `json:"status"`
	Model  string `json:"model"`
}

type generateResp struct {
	Masks []maskResp `json:"masks"`
}

type maskResp struct {
	Area         int    `json:"area"`
	Segmentation string `json:"segmentation"`
}

func New(opts Options, cli httpclient.IClient) *Client {
	if opts.Device == "" {
		opts.Device = "cpu"
	}
	opts.Endpoint = strings.TrimRight(opts.Endpoint, "/")
	if cli == nil {
		cli = httpclient.NewHTTPClientWithTimeout(opts.Timeout)
	}
	return &Client{opts: opts, cli: cli}
}

// Loader 返回注册表使用的加载函数：请求推理服务加载 checkpoint，成功后返回客户端
func Loader(opts Options) segment.Loader {
	return func(ctx context.Context) (segment.Model, error) {
		c := New(opts, nil)
		if err := c.load(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}
}

// ModelType 把 "sam_vit_b" 这类模型名转换成推理服务使用的 "vit_b"
func ModelType(name string) string {
	return strings.TrimPrefix(name, "sam_")
}

func (c *Client) Name() string {
	return c.opts.Name
}

// Close 权重由推理服务持有，这里没有需要释放的资源
func (c *Client) Close() error {
	return nil
}

func (c *Client) load(ctx context.Context) error {
	resp := &loadResp{}
	reqParam := &httpclient.RequestParam{
		RequestURI: c.opts.Endpoint + loadPath,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": "application/json"},
		Body: loadReq{
			ModelType:  ModelType(c.opts.Name),
			Checkpoint: c.opts.Checkpoint,
			Device:     c.opts.Device,
		},
		Response: resp,
	}
	if err := c.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return fmt.Errorf("load model: %w", err)
	}
	if resp.Status != "" && resp.Status != "ok" {
		return fmt.Errorf("load model: inference server reported status %q", resp.Status)
	}

	utils.Logger.Info("sam model loaded",
		zap.String("model", c.opts.Name),
		zap.String("checkpoint", c.opts.Checkpoint),
		zap.String("endpoint", c.opts.Endpoint))
	return nil
}

// Generate 上传图像并把返回的掩码还原到原图尺寸
func (c *Client) Generate(ctx context.Context, img *image.NRGBA) ([]segment.Mask, error) {
	bounds := img.Bounds()
	input := resizeWithinMax(img, c.opts.MaxSide)

	body, contentType, err := multipartImage(input)
	if err != nil {
		return nil, err
	}

	resp := &generateResp{}
	reqParam := &httpclient.RequestParam{
		RequestURI: c.opts.Endpoint + generatePath,
		Method:     http.MethodPost,
		Header:     map[string]string{"Content-Type": contentType},
		Body:       body,
		Response:   resp,
	}
	if err := c.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("generate masks: %w", err)
	}

	masks := make([]segment.Mask, 0, len(resp.Masks))
	for i, m := range resp.Masks {
		mask, err := decodeMask(m.Segmentation, bounds.Dx(), bounds.Dy())
		if err != nil {
			return nil, fmt.Errorf("decode mask %d: %w", i, err)
		}
		masks = append(masks, mask)
	}

	utils.Logger.Debug("sam masks received",
		zap.Int("count", len(masks)),
		zap.Int("input_width", input.Bounds().Dx()),
		zap.Int("input_height", input.Bounds().Dy()))

	return masks, nil
}

func multipartImage(img image.Image) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "image.png")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return nil, "", fmt.Errorf("encode form image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

// resizeWithinMax 最长边超过 maxSize 时等比缩小
func resizeWithinMax(img *image.NRGBA, maxSize int) image.Image {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	longest := max(w, h)
	if maxSize <= 0 || longest <= maxSize {
		return img
	}

	scale := float64(maxSize) / float64(longest)
	newW := max(1, int(float64(w)*scale))
	newH := max(1, int(float64(h)*scale))
	return resize.Resize(uint(newW), uint(newH), img, resize.Lanczos3)
}

// decodeMask 解码 base64 PNG 掩码，尺寸不一致时最近邻放大回 width×height，面积按放大后重新计算
func decodeMask(encoded string, width, height int) (segment.Mask, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return segment.Mask{}, fmt.Errorf("base64: %w", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return segment.Mask{}, fmt.Errorf("png: %w", err)
	}

	b := decoded.Bounds()
	if b.Dx() != width || b.Dy() != height {
		decoded = resize.Resize(uint(width), uint(height), decoded, resize.NearestNeighbor)
	}
	return segment.MaskFromGray(toGray(decoded), maskThreshold), nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Bounds().Min == (image.Point{}) {
		return g
	}
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
