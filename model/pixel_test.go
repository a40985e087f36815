package model

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPixelBuffer_DropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 0})
	img.SetNRGBA(1, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 128})

	buf := NewPixelBuffer(img)
	assert.Equal(t, 2, buf.Width())
	assert.Equal(t, 1, buf.Height())

	r, g, b := buf.RGBAt(0, 0)
	assert.Equal(t, []uint8{10, 20, 30}, []uint8{r, g, b})
	r, g, b = buf.RGBAt(1, 0)
	assert.Equal(t, []uint8{200, 100, 50}, []uint8{r, g, b})
}

func TestNewPixelBuffer_Gray(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.SetGray(0, 0, color.Gray{Y: 77})

	r, g, b := NewPixelBuffer(img).RGBAt(0, 0)
	assert.Equal(t, []uint8{77, 77, 77}, []uint8{r, g, b})
}

func TestPixelBuffer_ImageView(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.SetNRGBA(2, 1, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	view := NewPixelBuffer(img).Image()

	assert.Equal(t, image.Rect(0, 0, 3, 2), view.Bounds())
	assert.Equal(t, color.RGBA{R: 1, G: 2, B: 3, A: 255}, view.At(2, 1))
	assert.Equal(t, color.RGBA{A: 255}, view.At(5, 5))
}
