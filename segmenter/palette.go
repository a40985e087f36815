package segmenter

import (
	"context"
	"errors"
	"image"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/mask"
	"github.com/TIANLI0/MaskKit/model"
	"github.com/anthonynsimon/bild/blur"
	"github.com/disintegration/imaging"
)

const (
	// cueRange 颜色提示的 Lab 距离归一化尺度，距离超过它相似度为 0
	cueRange = 0.5
	// homogeneityScale 区域内平均色差达到该值时得分为 0
	homogeneityScale = 0.25
)

// PaletteSegmenter 基于 Lab 颜色区域的纯 Go 分割器
//
// 枚举模式按相邻像素色差做区域生长；带文本时从提示中解析参考颜色，返回相近颜色的连通区域。
type PaletteSegmenter struct {
	maxSide      int
	blurRadius   float64
	mergeTol     float64
	minAreaRatio float64
}

func NewPaletteSegmenter(cfg config.PaletteConfig) *PaletteSegmenter {
	return &PaletteSegmenter{
		maxSide:      cfg.MaxSide,
		blurRadius:   cfg.BlurRadius,
		mergeTol:     cfg.MergeTolerance,
		minAreaRatio: cfg.MinAreaRatio,
	}
}

func (s *PaletteSegmenter) Name() string { return "palette" }

type region struct {
	pixels []int
	score  float64
}

// Segment 返回按得分降序的候选
func (s *PaletteSegmenter) Segment(ctx context.Context, buf *model.PixelBuffer, opts Options) ([]model.Candidate, error) {
	if buf == nil || buf.Width() == 0 || buf.Height() == 0 {
		return nil, errors.New("palette: empty image")
	}

	work := s.prepare(buf)
	w, h := work.Bounds().Dx(), work.Bounds().Dy()
	px := make([]lab, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := work.PixOffset(x, y)
			px[y*w+x] = rgbLab(work.Pix[o], work.Pix[o+1], work.Pix[o+2])
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var regions []region
	if opts.WithText {
		ref, ok := ParseCueColor(opts.Text)
		if !ok {
			return nil, nil
		}
		regions = s.matchCue(px, w, h, toLab(ref), opts.TextThreshold)
	} else {
		regions = s.growRegions(px, w, h)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	minArea := int(s.minAreaRatio * float64(w*h))
	if minArea < 1 {
		minArea = 1
	}

	cands := make([]model.Candidate, 0, len(regions))
	for _, r := range regions {
		if len(r.pixels) < minArea {
			continue
		}
		m := mask.New(h, w)
		for _, i := range r.pixels {
			m.Data[i] = 1
		}
		if w != buf.Width() || h != buf.Height() {
			m = resizeMask(m, buf.Width(), buf.Height())
		}
		cands = append(cands, model.Candidate{Mask: m, Score: r.score})
	}

	return Postprocess(cands, opts), nil
}

// prepare 缩放到 maxSide 以内并做高斯模糊去噪
func (s *PaletteSegmenter) prepare(buf *model.PixelBuffer) *image.NRGBA {
	img := imaging.Clone(buf.Image())
	if s.maxSide > 0 && (img.Bounds().Dx() > s.maxSide || img.Bounds().Dy() > s.maxSide) {
		img = imaging.Fit(img, s.maxSide, s.maxSide, imaging.Box)
	}
	if s.blurRadius > 0 {
		img = imaging.Clone(blur.Gaussian(img, s.blurRadius))
	}
	return img
}

func (s *PaletteSegmenter) growRegions(px []lab, w, h int) []region {
	comps := components(w, h,
		func(int) bool { return true },
		func(a, b int) bool { return px[a].dist(px[b]) <= s.mergeTol },
	)

	regions := make([]region, 0, len(comps))
	for _, c := range comps {
		var mean lab
		for _, i := range c {
			mean.l += px[i].l
			mean.a += px[i].a
			mean.b += px[i].b
		}
		n := float64(len(c))
		mean = lab{mean.l / n, mean.a / n, mean.b / n}

		var spread float64
		for _, i := range c {
			spread += px[i].dist(mean)
		}
		regions = append(regions, region{
			pixels: c,
			score:  clamp01(1 - spread/n/homogeneityScale),
		})
	}
	return regions
}

func (s *PaletteSegmenter) matchCue(px []lab, w, h int, ref lab, textThreshold float64) []region {
	sim := make([]float64, len(px))
	for i := range px {
		sim[i] = clamp01(1 - px[i].dist(ref)/cueRange)
	}

	comps := components(w, h,
		func(i int) bool { return sim[i] > 0 && sim[i] >= textThreshold },
		func(int, int) bool { return true },
	)

	regions := make([]region, 0, len(comps))
	for _, c := range comps {
		var total float64
		for _, i := range c {
			total += sim[i]
		}
		regions = append(regions, region{pixels: c, score: total / float64(len(c))})
	}
	return regions
}

// components 四邻域连通区域，按行扫描顺序返回
func components(w, h int, include func(i int) bool, joins func(a, b int) bool) [][]int {
	seen := make([]bool, w*h)
	var out [][]int
	queue := make([]int, 0, 64)

	for start := 0; start < w*h; start++ {
		if seen[start] || !include(start) {
			continue
		}
		seen[start] = true
		queue = append(queue[:0], start)
		comp := []int{}

		for len(queue) > 0 {
			p := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			comp = append(comp, p)

			x, y := p%w, p/w
			for _, n := range [4][2]int{{x - 1, y}, {x + 1, y}, {x, y - 1}, {x, y + 1}} {
				if n[0] < 0 || n[1] < 0 || n[0] >= w || n[1] >= h {
					continue
				}
				q := n[1]*w + n[0]
				if seen[q] || !include(q) || !joins(p, q) {
					continue
				}
				seen[q] = true
				queue = append(queue, q)
			}
		}
		out = append(out, comp)
	}
	return out
}

// resizeMask 最近邻缩放掩码到原图尺寸
func resizeMask(m *mask.Mask, width, height int) *mask.Mask {
	resized := imaging.Resize(m.Gray(), width, height, imaging.NearestNeighbor)
	out := mask.New(height, width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if resized.Pix[resized.PixOffset(x, y)] > 127 {
				out.Data[y*width+x] = 1
			}
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
