//go:build !ocr

package segmenter

import (
	"errors"

	"github.com/TIANLI0/MaskKit/config"
)

// NewOCRSegmenter 未启用 ocr 构建标签
func NewOCRSegmenter(config.OCRConfig) (Segmenter, error) {
	return nil, errors.New("ocr backend requires building with -tags ocr")
}
