package service

import (
	"context"

	"github.com/TIANLI0/MaskKit/model"
	"github.com/TIANLI0/MaskKit/utils"
	"go.uber.org/zap"
)

// Aggregator 顺序处理提示词并合并结果
type Aggregator struct {
	dispatcher *Dispatcher
}

func NewAggregator(d *Dispatcher) *Aggregator {
	return &Aggregator{dispatcher: d}
}

// Run 单个提示词失败时输出一条占位并继续，结果顺序与输入一致
func (a *Aggregator) Run(ctx context.Context, buf *model.PixelBuffer, prompts []model.Prompt, th Thresholds) *model.BatchResult {
	result := &model.BatchResult{Entries: make([]model.ResultEntry, 0, len(prompts))}
	sel := NewSelector(buf)

	for i, p := range prompts {
		r := a.dispatcher.Dispatch(ctx, buf, p, th)

		err := r.Err
		var entries []model.ResultEntry
		if err == nil {
			entries, err = sel.Select(p, r.Candidates)
		}

		if err != nil {
			utils.Logger.Warn("prompt failed",
				zap.Int("index", i),
				zap.String("prompt", p.Text),
				zap.String("mode", p.Mode.String()),
				zap.Error(err))
			result.Entries = append(result.Entries, model.Placeholder(p.Text))
			result.Failures = append(result.Failures, model.PromptFailure{Index: i, Prompt: p.Text, Err: err})
			continue
		}

		result.Entries = append(result.Entries, entries...)
	}
	return result
}
