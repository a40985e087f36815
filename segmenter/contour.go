//go:build gocv

package segmenter

import (
	"context"
	"fmt"
	"image"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/mask"
	"github.com/TIANLI0/MaskKit/model"
	"github.com/TIANLI0/MaskKit/utils"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// 触发皮肤检测的提示词
var skinCues = map[string]bool{
	"person": true, "people": true, "face": true, "skin": true, "hand": true,
	"hands": true, "man": true, "woman": true, "child": true, "portrait": true,
}

// ContourSegmenter 基于 OpenCV 颜色显著性、GrabCut 和轮廓的分割器
type ContourSegmenter struct {
	maxSide      int
	kernelSize   int
	minAreaRatio float64
}

func NewContourSegmenter(cfg config.ContourConfig) (Segmenter, error) {
	return &ContourSegmenter{
		maxSide:      cfg.MaxSide,
		kernelSize:   cfg.KernelSize,
		minAreaRatio: cfg.MinAreaRatio,
	}, nil
}

func (s *ContourSegmenter) Name() string { return "contour" }

func (s *ContourSegmenter) Segment(ctx context.Context, buf *model.PixelBuffer, opts Options) ([]model.Candidate, error) {
	img, err := gocv.ImageToMatRGB(buf.Image())
	if err != nil {
		return nil, fmt.Errorf("contour: %w", err)
	}
	defer img.Close()

	width := img.Cols()
	height := img.Rows()

	scaled, scale := smartResize(&img, s.maxSide)
	defer scaled.Close()

	scene := analyzeScene(&scaled)
	utils.Logger.Debug("scene analyzed",
		zap.Stringer("level", scene.Level),
		zap.Float64("edge_density", scene.EdgeDensity),
		zap.Float64("lab_spread", scene.LabSpread),
		zap.Float64("skin_ratio", scene.SkinRatio))

	kernelSize := s.kernelSize
	if scene.Level == sceneSimple {
		kernelSize = max(3, kernelSize-2)
	}

	var fg, cue gocv.Mat
	if opts.WithText {
		var ok bool
		cue, ok = cueMask(&scaled, opts)
		if !ok {
			return nil, nil
		}
		defer cue.Close()
		fg = grabCutFromCue(&scaled, &cue)
	} else {
		fg = contrastSaliency(&scaled)
	}
	defer fg.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cleaned := cleanMask(&fg, kernelSize, scene.Level != sceneSimple)
	defer cleaned.Close()

	minArea := s.minAreaRatio * float64(scaled.Rows()*scaled.Cols())
	regions := splitRegions(&cleaned, minArea)

	cands := make([]model.Candidate, 0, len(regions))
	for _, r := range regions {
		score := r.extent
		if opts.WithText {
			score = overlapRatio(&r.mat, &cue)
		}

		if scale != 1.0 {
			resized := gocv.NewMat()
			gocv.Resize(r.mat, &resized, image.Point{X: width, Y: height}, 0, 0, gocv.InterpolationNearestNeighbor)
			r.mat.Close()
			r.mat = resized
		}
		cands = append(cands, model.Candidate{Mask: matToMask(&r.mat), Score: score})
		r.mat.Close()
	}

	return Postprocess(cands, opts), nil
}

// cueMask 按提示词生成初始前景，无法识别时返回 false
func cueMask(img *gocv.Mat, opts Options) (gocv.Mat, bool) {
	for _, w := range promptTerms(opts.Text) {
		if skinCues[w] {
			m := skinMask(img)
			if gocv.CountNonZero(m) == 0 {
				m.Close()
				return gocv.Mat{}, false
			}
			return m, true
		}
	}

	ref, ok := ParseCueColor(opts.Text)
	if !ok {
		return gocv.Mat{}, false
	}
	target := toLab(ref)

	rows, cols := img.Rows(), img.Cols()
	bgr := img.ToBytes()
	out := make([]byte, rows*cols)
	hits := 0
	for i := range out {
		sim := clamp01(1 - rgbLab(bgr[3*i+2], bgr[3*i+1], bgr[3*i]).dist(target)/cueRange)
		if sim > 0 && sim >= opts.TextThreshold {
			out[i] = 255
			hits++
		}
	}
	if hits == 0 {
		return gocv.Mat{}, false
	}

	m, err := matFromBytes(rows, cols, out)
	if err != nil {
		utils.Logger.Warn("failed to build cue mask", zap.Error(err))
		return gocv.Mat{}, false
	}
	return m, true
}

// overlapRatio 区域内命中提示的像素占比
func overlapRatio(region, cue *gocv.Mat) float64 {
	total := gocv.CountNonZero(*region)
	if total == 0 {
		return 0
	}
	both := gocv.NewMat()
	defer both.Close()
	gocv.BitwiseAnd(*region, *cue, &both)
	return float64(gocv.CountNonZero(both)) / float64(total)
}

func matToMask(m *gocv.Mat) *mask.Mask {
	out := mask.New(m.Rows(), m.Cols())
	for i, v := range m.ToBytes() {
		if v > 127 {
			out.Data[i] = 1
		}
	}
	return out
}

// smartResize 缩放图像以适应最大尺寸
func smartResize(img *gocv.Mat, maxSize int) (gocv.Mat, float64) {
	width := img.Cols()
	height := img.Rows()
	maxDim := max(width, height)
	if maxSize <= 0 || maxDim <= maxSize {
		return img.Clone(), 1.0
	}

	scale := float64(maxSize) / float64(maxDim)
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)

	resized := gocv.NewMat()
	gocv.Resize(*img, &resized, image.Point{X: newWidth, Y: newHeight}, 0, 0, gocv.InterpolationArea)

	return resized, scale
}
