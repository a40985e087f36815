package model

import (
	"time"

	"github.com/TIANLI0/MaskKit/mask"
)

// Thresholds 请求级阈值
type Thresholds struct {
	Box  *float64 `json:"box,omitempty"`
	Text *float64 `json:"text,omitempty"`
}

// PredictRequest 分割请求
type PredictRequest struct {
	Image      string      `json:"image"`
	Prompts    []string    `json:"prompts"`
	Thresholds *Thresholds `json:"thresholds,omitempty"`

	// 兼容旧客户端的平铺字段
	BoxThreshold  *float64 `json:"box_threshold,omitempty"`
	TextThreshold *float64 `json:"text_threshold,omitempty"`
}

// ResolveThresholds 合并请求阈值与默认值，thresholds 优先于平铺字段
func (r *PredictRequest) ResolveThresholds(defBox, defText float64) (box, text float64) {
	box, text = defBox, defText
	if r.BoxThreshold != nil {
		box = *r.BoxThreshold
	}
	if r.TextThreshold != nil {
		text = *r.TextThreshold
	}
	if r.Thresholds != nil {
		if r.Thresholds.Box != nil {
			box = *r.Thresholds.Box
		}
		if r.Thresholds.Text != nil {
			text = *r.Thresholds.Text
		}
	}
	return box, text
}

// PredictResponse 分割响应，三个数组按下标对齐
type PredictResponse struct {
	Masks     []*mask.Encoded `json:"masks"`
	Scores    []float64       `json:"scores"`
	Labels    []string        `json:"labels"`
	RequestID string          `json:"request_id,omitempty"`
	ResultID  string          `json:"result_id,omitempty"`
}

// SegmentResponse 兼容 Modal 部署的包装格式
type SegmentResponse struct {
	Predictions []PredictResponse `json:"predictions"`
}

// PredictionRecord 保存的历史结果，ID 由服务端生成
type PredictionRecord struct {
	ID        string          `json:"id"`
	ImageMD5  string          `json:"image_md5"`
	Prompts   []string        `json:"prompts"`
	Response  PredictResponse `json:"response"`
	CreatedAt time.Time       `json:"created_at"`
}

// HealthResponse 健康检查
type HealthResponse struct {
	Status  string `json:"status"`
	Model   string `json:"model"`
	Version string `json:"version"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}
