package model

import (
	"fmt"

	"github.com/TIANLI0/MaskKit/mask"
)

// EverythingPrompt 保留提示词，切换到全量枚举模式（精确匹配）
const EverythingPrompt = "everything_prompt"

// Mode 分发模式
type Mode int

const (
	ModeTargeted     Mode = iota // 按文本提示取最佳结果
	ModeEnumerateAll             // 不带文本提示，返回全部候选
)

func (m Mode) String() string {
	switch m {
	case ModeTargeted:
		return "targeted"
	case ModeEnumerateAll:
		return "enumerate_all"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

// Prompt 在请求边界确定模式后的提示词
type Prompt struct {
	Mode Mode
	Text string
}

// ParsePrompt 解析单个提示词
func ParsePrompt(text string) Prompt {
	if text == EverythingPrompt {
		return Prompt{Mode: ModeEnumerateAll, Text: text}
	}
	return Prompt{Mode: ModeTargeted, Text: text}
}

// ParsePrompts 按输入顺序解析
func ParsePrompts(texts []string) []Prompt {
	prompts := make([]Prompt, len(texts))
	for i, t := range texts {
		prompts[i] = ParsePrompt(t)
	}
	return prompts
}

// Candidate 分割器返回的候选掩码
type Candidate struct {
	Mask  *mask.Mask
	Score float64
}

// ResultEntry 单条输出结果，Mask 为 nil 表示无检测或失败
type ResultEntry struct {
	Mask  *mask.Encoded
	Score float64
	Label string
}

// Placeholder 失败或无检测时的占位结果
func Placeholder(label string) ResultEntry {
	return ResultEntry{Mask: nil, Score: 0.0, Label: label}
}

// PromptFailure 单个提示词的失败原因
type PromptFailure struct {
	Index  int
	Prompt string
	Err    error
}

// BatchResult 一次请求的有序结果
type BatchResult struct {
	Entries  []ResultEntry
	Failures []PromptFailure
}

// Response 转为接口响应
func (b *BatchResult) Response() PredictResponse {
	resp := PredictResponse{
		Masks:  make([]*mask.Encoded, len(b.Entries)),
		Scores: make([]float64, len(b.Entries)),
		Labels: make([]string, len(b.Entries)),
	}
	for i, e := range b.Entries {
		resp.Masks[i] = e.Mask
		resp.Scores[i] = e.Score
		resp.Labels[i] = e.Label
	}
	return resp
}
