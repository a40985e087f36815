package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/TIANLI0/MaskKit/model"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageBoundary 请求图像的解码入口，MaxPixels 为 0 时不限制
type ImageBoundary struct {
	MaxPixels int
}

// DecodeImage 不限制尺寸地解码图像
func DecodeImage(data []byte) (*model.PixelBuffer, error) {
	return ImageBoundary{}.Decode(data)
}

// DecodeBase64Image 解码 base64 或 data URL 形式的图像
func DecodeBase64Image(text string) (*model.PixelBuffer, error) {
	return ImageBoundary{}.DecodeBase64(text)
}

// Decode 先读取尺寸做限制检查，再完整解码并按 EXIF 方向旋转
func (b ImageBoundary) Decode(data []byte) (*model.PixelBuffer, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "image is empty"}
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "unsupported or corrupt image", Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("invalid %s dimensions %dx%d", format, cfg.Width, cfg.Height)}
	}
	if b.MaxPixels > 0 && cfg.Width*cfg.Height > b.MaxPixels {
		return nil, &DecodeError{Reason: fmt.Sprintf("image has %d pixels, limit is %d", cfg.Width*cfg.Height, b.MaxPixels)}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Reason: "unsupported or corrupt image", Err: err}
	}
	return model.NewPixelBuffer(img), nil
}

func (b ImageBoundary) DecodeBase64(text string) (*model.PixelBuffer, error) {
	data, err := DecodeBase64(text)
	if err != nil {
		return nil, err
	}
	return b.Decode(data)
}

// DecodeBase64 去掉 data URL 前缀后解码，兼容无填充的 base64
func DecodeBase64(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "data:") {
		i := strings.IndexByte(text, ',')
		if i < 0 {
			return nil, &DecodeError{Reason: "malformed data URL"}
		}
		text = text[i+1:]
	}
	if text == "" {
		return nil, &DecodeError{Reason: "image is empty"}
	}

	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		var rawErr error
		if data, rawErr = base64.RawStdEncoding.DecodeString(strings.TrimRight(text, "=")); rawErr != nil {
			return nil, &DecodeError{Reason: "image is not valid base64", Err: err}
		}
	}
	return data, nil
}
