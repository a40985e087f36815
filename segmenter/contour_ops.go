//go:build gocv

package segmenter

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

type sceneLevel int

const (
	sceneSimple sceneLevel = iota
	sceneMedium
	sceneComplex
	scenePortrait
)

func (l sceneLevel) String() string {
	switch l {
	case sceneSimple:
		return "simple"
	case sceneComplex:
		return "complex"
	case scenePortrait:
		return "portrait"
	default:
		return "medium"
	}
}

const (
	simpleEdgeDensity  = 0.05
	complexEdgeDensity = 0.15
	simpleLabSpread    = 30
	complexLabSpread   = 60
	portraitSkinRatio  = 0.15
)

// GrabCut 掩码标签
const (
	gcProbBackground = 2
	gcProbForeground = 3
)

// sceneStats 图像复杂度统计，决定形态学核大小和是否平滑边缘
type sceneStats struct {
	Level       sceneLevel
	EdgeDensity float64
	LabSpread   float64
	SkinRatio   float64
}

func analyzeScene(img *gocv.Mat) sceneStats {
	pixels := float64(img.Rows() * img.Cols())

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(*img, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	skin := skinMask(img)
	defer skin.Close()

	st := sceneStats{
		EdgeDensity: float64(gocv.CountNonZero(edges)) / pixels,
		LabSpread:   labSpread(img),
		SkinRatio:   float64(gocv.CountNonZero(skin)) / pixels,
	}

	switch {
	case st.SkinRatio > portraitSkinRatio:
		st.Level = scenePortrait
	case st.EdgeDensity < simpleEdgeDensity && st.LabSpread < simpleLabSpread:
		st.Level = sceneSimple
	case st.EdgeDensity > complexEdgeDensity || st.LabSpread > complexLabSpread:
		st.Level = sceneComplex
	default:
		st.Level = sceneMedium
	}
	return st
}

// labSpread Lab 三通道标准差的均值
func labSpread(img *gocv.Mat) float64 {
	lab := gocv.NewMat()
	defer lab.Close()
	gocv.CvtColor(*img, &lab, gocv.ColorBGRToLab)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lab, &mean, &stddev)

	n := stddev.Rows()
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += stddev.GetDoubleAt(i, 0)
	}
	return sum / float64(n)
}

// skinMask YCrCb 肤色区间，中值滤波去掉孤立点
func skinMask(img *gocv.Mat) gocv.Mat {
	ycrcb := gocv.NewMat()
	defer ycrcb.Close()
	gocv.CvtColor(*img, &ycrcb, gocv.ColorBGRToYCrCb)

	raw := gocv.NewMat()
	defer raw.Close()
	gocv.InRangeWithScalar(ycrcb,
		gocv.Scalar{Val1: 0, Val2: 133, Val3: 77},
		gocv.Scalar{Val1: 255, Val2: 173, Val3: 127, Val4: 255},
		&raw)

	skin := gocv.NewMat()
	gocv.MedianBlur(raw, &skin, 5)
	return skin
}

// contrastSaliency 与全图平均 Lab 颜色差异大的像素视为显著，Otsu 二值化
func contrastSaliency(img *gocv.Mat) gocv.Mat {
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(*img, &blurred, image.Point{X: 5, Y: 5}, 0, 0, gocv.BorderDefault)

	lab8 := gocv.NewMat()
	defer lab8.Close()
	gocv.CvtColor(blurred, &lab8, gocv.ColorBGRToLab)

	lab := gocv.NewMat()
	defer lab.Close()
	lab8.ConvertTo(&lab, gocv.MatTypeCV32FC3)

	avg := gocv.NewMatWithSizeFromScalar(lab.Mean(), lab.Rows(), lab.Cols(), gocv.MatTypeCV32FC3)
	defer avg.Close()

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.Subtract(lab, avg, &diff)

	channels := gocv.Split(diff)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	// 三通道欧氏距离
	planar := gocv.NewMat()
	defer planar.Close()
	gocv.Magnitude(channels[0], channels[1], &planar)
	dist := gocv.NewMat()
	defer dist.Close()
	gocv.Magnitude(planar, channels[2], &dist)

	norm := gocv.NewMat()
	defer norm.Close()
	gocv.Normalize(dist, &norm, 0, 255, gocv.NormMinMax)

	norm8 := gocv.NewMat()
	defer norm8.Close()
	norm.ConvertTo(&norm8, gocv.MatTypeCV8U)

	sal := gocv.NewMat()
	gocv.Threshold(norm8, &sal, 0, 255, gocv.ThresholdBinary+gocv.ThresholdOtsu)
	return sal
}

// grabCutFromCue 提示区域标为可能前景，其余为可能背景
func grabCutFromCue(img, cue *gocv.Mat) gocv.Mat {
	total := cue.Rows() * cue.Cols()
	if n := gocv.CountNonZero(*cue); n == 0 || n == total {
		return cue.Clone()
	}

	labels := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(gcProbBackground, 0, 0, 0), cue.Rows(), cue.Cols(), gocv.MatTypeCV8U)
	defer labels.Close()
	probFg := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(gcProbForeground, 0, 0, 0), cue.Rows(), cue.Cols(), gocv.MatTypeCV8U)
	defer probFg.Close()
	probFg.CopyToWithMask(&labels, *cue)

	bgdModel := gocv.NewMat()
	defer bgdModel.Close()
	fgdModel := gocv.NewMat()
	defer fgdModel.Close()
	gocv.GrabCut(*img, &labels, image.Rectangle{}, &bgdModel, &fgdModel, 2, gocv.GCInitWithMask)

	return foregroundFromLabels(&labels)
}

// foregroundFromLabels 标签 1（前景）和 3（可能前景）都是奇数
func foregroundFromLabels(labels *gocv.Mat) gocv.Mat {
	data := labels.ToBytes()
	out := make([]byte, len(data))
	for i, v := range data {
		if v&1 == 1 {
			out[i] = 255
		}
	}
	m, err := matFromBytes(labels.Rows(), labels.Cols(), out)
	if err != nil {
		return gocv.Zeros(labels.Rows(), labels.Cols(), gocv.MatTypeCV8U)
	}
	return m
}

// matFromBytes 复制一份，Mat 不引用 Go 内存
func matFromBytes(rows, cols int, data []byte) (gocv.Mat, error) {
	view, err := gocv.NewMatFromBytes(rows, cols, gocv.MatTypeCV8U, data)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer view.Close()
	return view.Clone(), nil
}

// cleanMask 开运算去噪点，闭运算填小孔，smooth 时中值滤波平滑边缘
func cleanMask(m *gocv.Mat, kernelSize int, smooth bool) gocv.Mat {
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Point{X: kernelSize, Y: kernelSize})
	defer kernel.Close()

	opened := gocv.NewMat()
	defer opened.Close()
	gocv.MorphologyEx(*m, &opened, gocv.MorphOpen, kernel)

	closed := gocv.NewMat()
	gocv.MorphologyEx(opened, &closed, gocv.MorphClose, kernel)
	if !smooth {
		return closed
	}

	smoothed := gocv.NewMat()
	gocv.MedianBlur(closed, &smoothed, 5)
	closed.Close()
	return smoothed
}

type contourRegion struct {
	mat    gocv.Mat
	extent float64
}

// splitRegions 每个外轮廓填充为独立掩码，extent 为轮廓面积与外接矩形面积之比
func splitRegions(m *gocv.Mat, minArea float64) []contourRegion {
	contours := gocv.FindContours(*m, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	var out []contourRegion
	for i := 0; i < contours.Size(); i++ {
		area := gocv.ContourArea(contours.At(i))
		if area < minArea {
			continue
		}
		rect := gocv.BoundingRect(contours.At(i))

		filled := gocv.Zeros(m.Rows(), m.Cols(), gocv.MatTypeCV8U)
		gocv.DrawContours(&filled, contours, i, white, -1)

		extent := 0.0
		if a := rect.Dx() * rect.Dy(); a > 0 {
			extent = clamp01(area / float64(a))
		}
		out = append(out, contourRegion{mat: filled, extent: extent})
	}
	return out
}
