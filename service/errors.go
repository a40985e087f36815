package service

import (
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable 分割模型未加载
	ErrModelUnavailable = errors.New("segmentation model is not loaded")
	// ErrQueueFull 排队超时
	ErrQueueFull = errors.New("processing queue is full")
	// ErrNotFound 结果不存在或已过期
	ErrNotFound = errors.New("result not found")
)

// DecodeError 图像无法解码，整个请求失败
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode image: %s: %v", e.Reason, e.Err)
	}
	return "decode image: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CandidateRetrievalError 分割器调用失败，只影响对应的提示词
type CandidateRetrievalError struct {
	Prompt string
	Err    error
}

func (e *CandidateRetrievalError) Error() string {
	return fmt.Sprintf("retrieve candidates for %q: %v", e.Prompt, e.Err)
}

func (e *CandidateRetrievalError) Unwrap() error { return e.Err }

// SelectionError 候选掩码无法输出
type SelectionError struct {
	Prompt string
	Reason string
	Err    error
}

func (e *SelectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("select mask for %q: %s: %v", e.Prompt, e.Reason, e.Err)
	}
	return fmt.Sprintf("select mask for %q: %s", e.Prompt, e.Reason)
}

func (e *SelectionError) Unwrap() error { return e.Err }
