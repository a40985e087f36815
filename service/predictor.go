package service

import (
	"context"
	"time"

	"github.com/TIANLI0/MaskKit/config"
	"github.com/TIANLI0/MaskKit/model"
	"github.com/TIANLI0/MaskKit/segmenter"
	"github.com/TIANLI0/MaskKit/utils"
	"go.uber.org/zap"
)

// PredictInput 一次预测请求，Image 为原始图像字节
type PredictInput struct {
	Image      []byte
	Prompts    []string
	Thresholds Thresholds
}

// Predictor 持有进程内唯一的分割器，创建后不可替换
type Predictor struct {
	seg        segmenter.Segmenter
	boundary   ImageBoundary
	aggregator *Aggregator
}

// NewPredictor seg 为 nil 表示模型加载失败，此时所有预测返回 ErrModelUnavailable
func NewPredictor(seg segmenter.Segmenter, cfg *config.Config) *Predictor {
	return &Predictor{
		seg:        seg,
		boundary:   ImageBoundary{MaxPixels: cfg.Limits.MaxPixels},
		aggregator: NewAggregator(NewDispatcher(seg, cfg.Dispatch)),
	}
}

// Ready 模型是否可用
func (p *Predictor) Ready() bool {
	return p.seg != nil
}

// ModelName 分割器名称，未加载时为空
func (p *Predictor) ModelName() string {
	if p.seg == nil {
		return ""
	}
	return p.seg.Name()
}

// Predict 解码图像、解析提示词并运行全部提示词
func (p *Predictor) Predict(ctx context.Context, in PredictInput) (*model.BatchResult, error) {
	if !p.Ready() {
		return nil, ErrModelUnavailable
	}

	buf, err := p.boundary.Decode(in.Image)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	prompts := model.ParsePrompts(in.Prompts)
	result := p.aggregator.Run(ctx, buf, prompts, in.Thresholds)

	utils.Logger.Info("prediction finished",
		zap.String("model", p.seg.Name()),
		zap.Int("width", buf.Width()),
		zap.Int("height", buf.Height()),
		zap.Int("prompts", len(prompts)),
		zap.Int("entries", len(result.Entries)),
		zap.Int("failures", len(result.Failures)),
		zap.Duration("duration", time.Since(startTime)))

	return result, nil
}
