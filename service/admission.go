package service

import (
	"context"
	"time"
)

// Gate 限制同时占用模型的请求数
type Gate struct {
	semaphore    chan struct{}
	queueTimeout time.Duration
}

func NewGate(maxConcurrent int, queueTimeout time.Duration) *Gate {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Gate{
		semaphore:    make(chan struct{}, maxConcurrent),
		queueTimeout: queueTimeout,
	}
}

// Acquire 等待空闲槽位，超过排队时间返回 ErrQueueFull
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	waitCtx := ctx
	if g.queueTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.queueTimeout)
		defer cancel()
	}

	select {
	case g.semaphore <- struct{}{}:
		return func() { <-g.semaphore }, nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrQueueFull
	}
}

// InFlight 当前占用的槽位数
func (g *Gate) InFlight() int {
	return len(g.semaphore)
}
