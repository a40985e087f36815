package service

import (
	"context"
	"fmt"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/model"
	"github.com/TIANLI0/MaskKit/segmenter"
)

// Thresholds 解析后的请求阈值
type Thresholds struct {
	Box  float64
	Text float64
}

// Retrieval 单个提示词的候选检索结果，Err 非空时 Candidates 为空
type Retrieval struct {
	Prompt     model.Prompt
	Candidates []model.Candidate
	Err        error
}

// Dispatcher 按提示词模式调用分割器
type Dispatcher struct {
	seg segmenter.Segmenter
	cfg config.DispatchConfig
}

func NewDispatcher(seg segmenter.Segmenter, cfg config.DispatchConfig) *Dispatcher {
	return &Dispatcher{seg: seg, cfg: cfg}
}

// Options 枚举模式不带文本、使用较宽松的重叠阈值且不限制候选数量，定向模式转发请求阈值
func (d *Dispatcher) Options(prompt model.Prompt, th Thresholds) segmenter.Options {
	if prompt.Mode == model.ModeEnumerateAll {
		return segmenter.Options{IoUThreshold: d.cfg.EverythingIoU}
	}
	return segmenter.Options{
		Text:          prompt.Text,
		WithText:      true,
		ConfThreshold: th.Box,
		TextThreshold: th.Text,
		IoUThreshold:  d.cfg.TargetedIoU,
		MaxCandidates: d.cfg.MaxCandidates,
	}
}

// Dispatch 分割器的错误和 panic 都转为 CandidateRetrievalError
func (d *Dispatcher) Dispatch(ctx context.Context, buf *model.PixelBuffer, prompt model.Prompt, th Thresholds) (r Retrieval) {
	r.Prompt = prompt

	defer func() {
		if p := recover(); p != nil {
			r.Candidates = nil
			r.Err = &CandidateRetrievalError{Prompt: prompt.Text, Err: fmt.Errorf("segmenter panic: %v", p)}
		}
	}()

	if d.seg == nil {
		r.Err = &CandidateRetrievalError{Prompt: prompt.Text, Err: ErrModelUnavailable}
		return r
	}

	cands, err := d.seg.Segment(ctx, buf, d.Options(prompt, th))
	if err != nil {
		r.Err = &CandidateRetrievalError{Prompt: prompt.Text, Err: err}
		return r
	}
	r.Candidates = cands
	return r
}
