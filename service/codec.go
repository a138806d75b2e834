package service

import (
	"errors"
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

var ErrUndecodable = errors.New("service: image data cannot be decoded")

// DecodeFile 按三通道彩色读入 PNG/JPEG 文件（原有透明度被丢弃），返回图像与嗅探出的格式名。
// 失败时附带真实内容类型，方便定位“改了扩展名”的上传
func DecodeFile(path string) (image.Image, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("open image: %w", err)
	}
	mt := mimetype.Detect(data)

	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		if err == nil {
			mat.Close()
			err = ErrUndecodable
		}
		return nil, "", fmt.Errorf("decode image (content looks like %s): %w", mt.String(), err)
	}
	defer mat.Close()

	img, err := mat.ToImage()
	if err != nil {
		return nil, "", fmt.Errorf("convert image: %w", err)
	}
	return img, strings.TrimPrefix(mt.String(), "image/"), nil
}

// ToRGB 把任意解码结果转成 Pix 从 (0,0) 开始的 NRGBA，并丢弃原有透明度
func ToRGB(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 255
	}
	return dst
}

// EncodePNG 无损编码结果图。输入转成 BGRA 四通道 Mat 后编码，
// 完全不透明的图也输出 8 位 RGBA
func EncodePNG(img *image.NRGBA) ([]byte, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	// 子图的 Pix 不连续，先按行拷出
	pix := make([]byte, 4*w*h)
	for y := 0; y < h; y++ {
		off := img.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pix[y*4*w:(y+1)*4*w], img.Pix[off:off+4*w])
	}

	rgba, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8UC4, pix)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	defer rgba.Close()

	bgra := gocv.NewMat()
	defer bgra.Close()
	gocv.CvtColor(rgba, &bgra, gocv.ColorRGBAToBGRA)

	buf, err := gocv.IMEncode(gocv.PNGFileExt, bgra)
	if err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	defer buf.Close()

	return append([]byte(nil), buf.GetBytes()...), nil
}
