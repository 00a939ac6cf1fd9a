package syncrep

import (
	"context"
	"testing"
	"time"

	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestWaitForLSNFastPathNoGroup(t *testing.T) {
	e := NewEngine()
	reason, err := e.WaitForLSN(context.Background(), nil, 100, types.WaitFlush)
	require.NoError(t, err)
	require.Equal(t, CancelNone, reason)
}

func TestWaitForLSNFastPathAlreadyAdvertised(t *testing.T) {
	e := NewEngine()
	g, err := ParseStandbyGroup("'s1'")
	require.NoError(t, err)
	e.UpdateSyncStandbysDefined(g)

	e.ReleaseWaiters([]StandbyState{{Name: "s1", PID: 1, Priority: 1, Streaming: true, WriteLSN: 500, FlushLSN: 500}})

	reason, err := e.WaitForLSN(context.Background(), nil, 100, types.WaitFlush)
	require.NoError(t, err)
	require.Equal(t, CancelNone, reason)
}

func TestWaitForLSNBlocksThenReleases(t *testing.T) {
	e := NewEngine()
	g, err := ParseStandbyGroup("'s1'")
	require.NoError(t, err)
	e.UpdateSyncStandbysDefined(g)

	done := make(chan error, 1)
	go func() {
		_, err := e.WaitForLSN(context.Background(), nil, 0x400, types.WaitFlush)
		done <- err
	}()

	require.Eventually(t, func() bool { return e.QueueDepth(types.WaitFlush) == 1 }, time.Second, time.Millisecond)

	e.ReleaseWaiters([]StandbyState{{Name: "s1", PID: 1, Priority: 1, Streaming: true, WriteLSN: 0x500, FlushLSN: 0x500}})

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was not released")
	}
	require.Equal(t, 0, e.QueueDepth(types.WaitFlush))
}

func TestWaitForLSNCancelByContext(t *testing.T) {
	e := NewEngine()
	g, err := ParseStandbyGroup("'s1'")
	require.NoError(t, err)
	e.UpdateSyncStandbysDefined(g)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := e.WaitForLSN(ctx, nil, 0xF00, types.WaitWrite)
		done <- err
	}()

	require.Eventually(t, func() bool { return e.QueueDepth(types.WaitWrite) == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("wait did not observe cancellation")
	}
	require.Equal(t, 0, e.QueueDepth(types.WaitWrite))
}

func TestUpdateSyncStandbysDefinedWakesAllOnDisable(t *testing.T) {
	e := NewEngine()
	g, err := ParseStandbyGroup("'s1'")
	require.NoError(t, err)
	e.UpdateSyncStandbysDefined(g)

	done := make(chan error, 1)
	go func() {
		_, err := e.WaitForLSN(context.Background(), nil, 0x900, types.WaitFlush)
		done <- err
	}()
	require.Eventually(t, func() bool { return e.QueueDepth(types.WaitFlush) == 1 }, time.Second, time.Millisecond)

	e.UpdateSyncStandbysDefined(nil)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("disabling sync replication did not wake waiters")
	}
}

func TestQueueInsertionMaintainsAscendingOrder(t *testing.T) {
	e := NewEngine()
	g, err := ParseStandbyGroup("'s1'")
	require.NoError(t, err)
	e.UpdateSyncStandbysDefined(g)

	var waits []types.LSN
	for _, lsn := range []types.LSN{30, 10, 20, 5} {
		n := newWaitNode(lsn, types.WaitWrite)
		e.mu.Lock()
		e.insertLocked(types.WaitWrite, n)
		e.mu.Unlock()
	}

	e.mu.Lock()
	for el := e.queues[types.WaitWrite].Front(); el != nil; el = el.Next() {
		waits = append(waits, el.Value.(*WaitNode).WaitLSN)
	}
	e.mu.Unlock()

	require.Equal(t, []types.LSN{5, 10, 20, 30}, waits)
}
