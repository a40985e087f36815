package service

import (
	"fmt"
	"math"

	"github.com/TIANLI0/MaskKit/mask"
	"github.com/TIANLI0/MaskKit/model"
)

// Selector 把候选转为输出条目，掩码尺寸必须与输入图像一致
type Selector struct {
	Width  int
	Height int
}

func NewSelector(buf *model.PixelBuffer) Selector {
	return Selector{Width: buf.Width(), Height: buf.Height()}
}

// Select 枚举模式输出全部候选（得分固定 1.0，标签 object_i）；
// 定向模式取得分最高者，并列取第一个，无候选时输出占位
func (s Selector) Select(prompt model.Prompt, cands []model.Candidate) ([]model.ResultEntry, error) {
	if prompt.Mode == model.ModeEnumerateAll {
		entries := make([]model.ResultEntry, 0, len(cands))
		for i, c := range cands {
			enc, err := s.encode(prompt, c)
			if err != nil {
				return nil, err
			}
			entries = append(entries, model.ResultEntry{
				Mask:  enc,
				Score: 1.0,
				Label: fmt.Sprintf("object_%d", i),
			})
		}
		return entries, nil
	}

	if len(cands) == 0 {
		return []model.ResultEntry{model.Placeholder(prompt.Text)}, nil
	}

	best := 0
	for i := 1; i < len(cands); i++ {
		if cands[i].Score > cands[best].Score {
			best = i
		}
	}

	score := cands[best].Score
	if math.IsNaN(score) || score < 0 || score > 1 {
		return nil, &SelectionError{Prompt: prompt.Text, Reason: fmt.Sprintf("score %v is outside [0,1]", score)}
	}

	enc, err := s.encode(prompt, cands[best])
	if err != nil {
		return nil, err
	}
	return []model.ResultEntry{{Mask: enc, Score: score, Label: prompt.Text}}, nil
}

func (s Selector) encode(prompt model.Prompt, c model.Candidate) (*mask.Encoded, error) {
	if c.Mask == nil {
		return nil, &SelectionError{Prompt: prompt.Text, Reason: "candidate has no mask"}
	}
	if c.Mask.Height != s.Height || c.Mask.Width != s.Width {
		return nil, &SelectionError{
			Prompt: prompt.Text,
			Reason: fmt.Sprintf("mask is %dx%d, image is %dx%d", c.Mask.Height, c.Mask.Width, s.Height, s.Width),
		}
	}
	enc, err := mask.Encode(c.Mask)
	if err != nil {
		return nil, fmt.Errorf("select mask for %q: %w", prompt.Text, err)
	}
	return enc, nil
}
