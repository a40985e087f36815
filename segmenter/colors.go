package segmenter

import (
	"math"
	"strings"
	"unicode"

	"github.com/lucasb-eyer/go-colorful"
)

var namedColors = map[string]string{
	"red":     "#ff0000",
	"orange":  "#ff8c00",
	"yellow":  "#ffff00",
	"gold":    "#ffd700",
	"green":   "#00a000",
	"lime":    "#00ff00",
	"teal":    "#008080",
	"cyan":    "#00ffff",
	"blue":    "#0000ff",
	"navy":    "#000080",
	"purple":  "#800080",
	"violet":  "#8a2be2",
	"magenta": "#ff00ff",
	"pink":    "#ffc0cb",
	"maroon":  "#800000",
	"brown":   "#8b4513",
	"beige":   "#f5f5dc",
	"cream":   "#fffdd0",
	"ivory":   "#fffff0",
	"white":   "#ffffff",
	"silver":  "#c0c0c0",
	"gray":    "#808080",
	"grey":    "#808080",
	"black":   "#000000",
}

// ParseCueColor 从文本提示中提取参考颜色，支持颜色名和 #rrggbb
func ParseCueColor(text string) (colorful.Color, bool) {
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if strings.HasPrefix(tok, "#") {
			if c, err := colorful.Hex(strings.TrimRightFunc(tok, isPunct)); err == nil {
				return c, true
			}
		}
	}

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if hex, ok := namedColors[w]; ok {
			c, _ := colorful.Hex(hex)
			return c, true
		}
	}
	return colorful.Color{}, false
}

func isPunct(r rune) bool {
	return unicode.IsPunct(r)
}

// lab 像素的 Lab 坐标
type lab struct {
	l, a, b float64
}

func toLab(c colorful.Color) lab {
	l, a, b := c.Lab()
	return lab{l, a, b}
}

func rgbLab(r, g, b uint8) lab {
	return toLab(colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255})
}

func (p lab) dist(q lab) float64 {
	dl, da, db := p.l-q.l, p.a-q.a, p.b-q.b
	return math.Sqrt(dl*dl + da*da + db*db)
}
