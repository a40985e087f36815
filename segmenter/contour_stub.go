//go:build !gocv

package segmenter

import (
	"errors"

	"github.com/TIANLI0/MaskKit/config"
)

// NewContourSegmenter 未启用 gocv 构建标签
func NewContourSegmenter(config.ContourConfig) (Segmenter, error) {
	return nil, errors.New("contour backend requires building with -tags gocv")
}
