package latch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatchSetBeforeWaitNotLost(t *testing.T) {
	l := New()
	l.Set()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, l.Wait(ctx, nil))
}

func TestLatchResetThenWaitBlocksUntilSet(t *testing.T) {
	l := New()
	l.Reset()

	done := make(chan struct{})
	woke := make(chan error, 1)
	go func() {
		woke <- l.Wait(context.Background(), done)
	}()

	select {
	case <-woke:
		t.Fatal("Wait returned before Set")
	case <-time.After(50 * time.Millisecond):
	}

	l.Set()
	require.NoError(t, <-woke)
}

func TestLatchWaitHonorsContext(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx, nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLatchWaitHonorsDone(t *testing.T) {
	l := New()
	done := make(chan struct{})
	close(done)

	err := l.Wait(context.Background(), done)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLatchCoalescesRedundantSets(t *testing.T) {
	l := New()
	l.Set()
	l.Set()
	l.Set()

	require.NoError(t, l.Wait(context.Background(), nil))
	l.Reset()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, l.Wait(ctx, nil), context.DeadlineExceeded)
}
