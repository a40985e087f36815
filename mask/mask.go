// Package mask 二值掩码及其游程编码（COCO RLE）
//
// 掩码按行存储，编码时按列遍历，输出与 pycocotools 兼容的压缩字符串，再做 base64。
package mask

import (
	"image"
	"image/color"
)

// Mask 二值掩码，按行存储，取值只能是 0 或 1
type Mask struct {
	Height int
	Width  int
	Data   []uint8
}

// New 创建全零掩码
func New(height, width int) *Mask {
	if height < 0 {
		height = 0
	}
	if width < 0 {
		width = 0
	}
	return &Mask{
		Height: height,
		Width:  width,
		Data:   make([]uint8, height*width),
	}
}

// FromRows 从二维切片构建掩码，255 视为前景
func FromRows(rows [][]uint8) (*Mask, error) {
	h := len(rows)
	if h == 0 {
		return New(0, 0), nil
	}
	w := len(rows[0])
	m := New(h, w)
	for y, row := range rows {
		if len(row) != w {
			return nil, &EncodeError{Reason: "grid is not rectangular", Row: y}
		}
		for x, v := range row {
			nv, ok := normalize(v)
			if !ok {
				return nil, &EncodeError{Reason: "value is not binary", Row: y, Col: x, Value: v}
			}
			m.Data[y*w+x] = nv
		}
	}
	return m, nil
}

// FromGray 将灰度图转为掩码，大于 127 的像素为前景
func FromGray(img *image.Gray) *Mask {
	b := img.Bounds()
	m := New(b.Dy(), b.Dx())
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if img.GrayAt(b.Min.X+x, b.Min.Y+y).Y > 127 {
				m.Data[y*m.Width+x] = 1
			}
		}
	}
	return m
}

func normalize(v uint8) (uint8, bool) {
	switch v {
	case 0:
		return 0, true
	case 1, 255:
		return 1, true
	}
	return 0, false
}

// At 返回 (x, y) 处的值，越界返回 0
func (m *Mask) At(x, y int) uint8 {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return 0
	}
	return m.Data[y*m.Width+x]
}

// Set 设置 (x, y) 处为前景或背景
func (m *Mask) Set(x, y int, on bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	if on {
		m.Data[y*m.Width+x] = 1
	} else {
		m.Data[y*m.Width+x] = 0
	}
}

// Area 前景像素数量
func (m *Mask) Area() int {
	n := 0
	for _, v := range m.Data {
		if v != 0 {
			n++
		}
	}
	return n
}

// Bounds 前景的外接矩形，无前景时返回空矩形
func (m *Mask) Bounds() image.Rectangle {
	var r image.Rectangle
	found := false
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Data[y*m.Width+x] == 0 {
				continue
			}
			p := image.Rect(x, y, x+1, y+1)
			if !found {
				r = p
				found = true
			} else {
				r = r.Union(p)
			}
		}
	}
	return r
}

// IoU 两个同尺寸掩码的交并比，尺寸不同返回 0
func (m *Mask) IoU(o *Mask) float64 {
	if o == nil || m.Height != o.Height || m.Width != o.Width {
		return 0
	}
	inter, union := 0, 0
	for i, v := range m.Data {
		a, b := v != 0, o.Data[i] != 0
		if a && b {
			inter++
		}
		if a || b {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Equal 判断两个掩码完全一致
func (m *Mask) Equal(o *Mask) bool {
	if o == nil || m.Height != o.Height || m.Width != o.Width || len(m.Data) != len(o.Data) {
		return false
	}
	for i := range m.Data {
		if m.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// Gray 转为灰度图，前景为 255
func (m *Mask) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Data[y*m.Width+x] != 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}
