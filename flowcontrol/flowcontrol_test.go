package flowcontrol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopLimiterNeverBlocks(t *testing.T) {
	l := NopLimiter()
	done, err := l.StartMessage(context.Background(), 1<<40)
	require.NoError(t, err)
	done()
	l.Release()
}

func TestFixedLimiterBlocksUntilBudgetFrees(t *testing.T) {
	l := NewFixedLimiter(10)

	done1, err := l.StartMessage(context.Background(), 10)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.StartMessage(ctx, 1)
	assert.Error(t, err, "a second message should block until the first's budget is released")

	done1()

	done2, err := l.StartMessage(context.Background(), 1)
	require.NoError(t, err)
	done2()
}

func TestFixedLimiterRejectsOversizeMessage(t *testing.T) {
	l := NewFixedLimiter(10)
	_, err := l.StartMessage(context.Background(), 1<<63)
	assert.Error(t, err)
}
