package model

import (
	"image"
	"image/color"
)

// PixelBuffer 请求内共享的只读 RGB 图像
type PixelBuffer struct {
	width  int
	height int
	pix    []uint8
}

// NewPixelBuffer 从任意图像复制出 RGB 缓冲，透明通道直接丢弃
func NewPixelBuffer(img image.Image) *PixelBuffer {
	b := img.Bounds()
	buf := &PixelBuffer{
		width:  b.Dx(),
		height: b.Dy(),
		pix:    make([]uint8, 3*b.Dx()*b.Dy()),
	}

	if src, ok := img.(*image.NRGBA); ok {
		for y := 0; y < buf.height; y++ {
			off := (y+b.Min.Y-src.Rect.Min.Y)*src.Stride + (b.Min.X-src.Rect.Min.X)*4
			row := src.Pix[off : off+4*buf.width]
			for x := 0; x < buf.width; x++ {
				i := 3 * (y*buf.width + x)
				buf.pix[i] = row[4*x]
				buf.pix[i+1] = row[4*x+1]
				buf.pix[i+2] = row[4*x+2]
			}
		}
		return buf
	}

	for y := 0; y < buf.height; y++ {
		for x := 0; x < buf.width; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			i := 3 * (y*buf.width + x)
			buf.pix[i] = c.R
			buf.pix[i+1] = c.G
			buf.pix[i+2] = c.B
		}
	}
	return buf
}

// Width 宽度
func (b *PixelBuffer) Width() int { return b.width }

// Height 高度
func (b *PixelBuffer) Height() int { return b.height }

// RGBAt 返回 (x, y) 的颜色，越界返回黑色
func (b *PixelBuffer) RGBAt(x, y int) (r, g, bl uint8) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return 0, 0, 0
	}
	i := 3 * (y*b.width + x)
	return b.pix[i], b.pix[i+1], b.pix[i+2]
}

// Image 返回只读视图，不复制像素
func (b *PixelBuffer) Image() image.Image {
	return rgbView{b}
}

type rgbView struct {
	buf *PixelBuffer
}

func (v rgbView) ColorModel() color.Model { return color.RGBAModel }

func (v rgbView) Bounds() image.Rectangle { return image.Rect(0, 0, v.buf.width, v.buf.height) }

func (v rgbView) At(x, y int) color.Color {
	r, g, b := v.buf.RGBAt(x, y)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
