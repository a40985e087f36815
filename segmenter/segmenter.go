// Package segmenter 分割模型的统一接口及各后端实现
//
// 服务只依赖 Segmenter 接口：给定像素缓冲和可选的文本提示，返回若干候选掩码及置信度。
// 后端在进程启动时构建一次，之后只读共享。
package segmenter

import (
	"context"
	"fmt"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/model"
)

// Options 单次调用参数
type Options struct {
	// Text 文本提示，WithText 为 false 时忽略
	Text     string
	WithText bool

	// ConfThreshold 最低置信度，0 表示使用后端默认值
	ConfThreshold float64
	// TextThreshold 文本匹配容差，0 表示使用后端默认值
	TextThreshold float64
	// IoUThreshold 重叠抑制阈值，越大保留越多
	IoUThreshold float64
	// MaxCandidates 最多返回的候选数，0 表示不限制
	MaxCandidates int
}

// Segmenter 分割能力
type Segmenter interface {
	Name() string
	Segment(ctx context.Context, buf *model.PixelBuffer, opts Options) ([]model.Candidate, error)
}

// New 按配置构建后端
func New(cfg config.SegmenterConfig) (Segmenter, error) {
	switch cfg.Backend {
	case "", "palette":
		return NewPaletteSegmenter(cfg.Palette), nil
	case "contour":
		return NewContourSegmenter(cfg.Contour)
	case "ocr":
		return NewOCRSegmenter(cfg.OCR)
	case "remote":
		return NewRemoteSegmenter(cfg.Remote)
	default:
		return nil, fmt.Errorf("unknown segmenter backend %q", cfg.Backend)
	}
}
