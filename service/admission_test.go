package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGate(t *testing.T) {
	g := NewGate(1, 20*time.Millisecond)

	release, err := g.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, g.InFlight())

	_, err = g.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrQueueFull)

	release()
	assert.Equal(t, 0, g.InFlight())

	release, err = g.Acquire(context.Background())
	require.NoError(t, err)
	release()
}

func TestGate_ParentCanceled(t *testing.T) {
	g := NewGate(1, time.Minute)
	release, err := g.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Acquire(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
