//go:build ocr

package segmenter

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/mask"
	"github.com/TIANLI0/MaskKit/model"
	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// OCRSegmenter 用 Tesseract 的单词框作为候选区域
type OCRSegmenter struct {
	language    string
	tessdataDir string
}

func NewOCRSegmenter(cfg config.OCRConfig) (Segmenter, error) {
	return &OCRSegmenter{language: cfg.Language, tessdataDir: cfg.TessdataDir}, nil
}

func (s *OCRSegmenter) Name() string { return "ocr" }

// Segment 带文本时只返回包含提示词的单词框
func (s *OCRSegmenter) Segment(ctx context.Context, buf *model.PixelBuffer, opts Options) ([]model.Candidate, error) {
	var png bytes.Buffer
	if err := imaging.Encode(&png, buf.Image(), imaging.PNG); err != nil {
		return nil, fmt.Errorf("ocr: encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if s.tessdataDir != "" {
		if err := client.SetTessdataPrefix(s.tessdataDir); err != nil {
			return nil, fmt.Errorf("ocr: %w", err)
		}
	}
	if err := client.SetLanguage(s.language); err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	if err := client.SetImageFromBytes(png.Bytes()); err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	terms := promptTerms(opts.Text)
	frame := image.Rect(0, 0, buf.Width(), buf.Height())

	cands := make([]model.Candidate, 0, len(boxes))
	for _, b := range boxes {
		word := strings.ToLower(strings.TrimSpace(b.Word))
		if word == "" {
			continue
		}
		if opts.WithText && !matchesAny(word, terms) {
			continue
		}

		r := b.Box.Intersect(frame)
		if r.Empty() {
			continue
		}
		m := mask.New(buf.Height(), buf.Width())
		for y := r.Min.Y; y < r.Max.Y; y++ {
			for x := r.Min.X; x < r.Max.X; x++ {
				m.Data[y*m.Width+x] = 1
			}
		}
		cands = append(cands, model.Candidate{Mask: m, Score: b.Confidence / 100})
	}
	return Postprocess(cands, opts), nil
}
