package actor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type started struct {
	worker *Ref
}

// boundedStart is "start" with its own lease deadline.
type boundedStart struct {
	until time.Time
}

func (b boundedStart) LeaseDeadline() (time.Time, bool) { return b.until, !b.until.IsZero() }

// leaseWorker answers "start" without releasing and releases on "done".
func leaseWorker() Props {
	return PropsFunc(func(ctx *Context, msg any) {
		switch msg.(type) {
		case boundedStart:
			_ = ctx.Reply(started{worker: ctx.Self()})
			return
		}
		switch msg {
		case "start":
			_ = ctx.Reply(started{worker: ctx.Self()})
		case "done":
			ctx.Release()
		}
	})
}

func TestPoolRunsWorkersConcurrently(t *testing.T) {
	sys := newTestSystem(t)
	entered := make(chan struct{}, 3)
	gate := make(chan struct{})

	ref, err := sys.Spawn(Props{
		New: func() Actor {
			return ReceiveFunc(func(ctx *Context, msg any) {
				entered <- struct{}{}
				<-gate
				_ = ctx.Reply(msg)
			})
		},
		Pool: &PoolConfig{Min: 1, Max: 3},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reply, err := sys.AskTimeout(ref, i, 2*time.Second)
			assert.NoError(t, err)
			assert.Equal(t, i, reply)
		}(i)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-entered:
		case <-time.After(time.Second):
			t.Fatalf("only %d workers started concurrently", i)
		}
	}
	close(gate)
	wg.Wait()
}

func TestPoolQueuesBeyondMax(t *testing.T) {
	sys := newTestSystem(t)
	ref, err := sys.Spawn(Props{New: echo().New, Pool: &PoolConfig{Max: 1}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reply, err := sys.AskTimeout(ref, i, 2*time.Second)
			assert.NoError(t, err)
			assert.Equal(t, i, reply)
		}(i)
	}
	wg.Wait()
}

func TestLeasedWorkerStaysCheckedOutUntilRelease(t *testing.T) {
	sys := newTestSystem(t)
	ref, err := sys.Spawn(Props{New: leaseWorker().New, Pool: &PoolConfig{Max: 1, Lease: true}})
	require.NoError(t, err)

	first, err := sys.AskTimeout(ref, "start", time.Second)
	require.NoError(t, err)
	worker := first.(started).worker

	second := make(chan any, 1)
	go func() {
		reply, err := sys.AskTimeout(ref, "start", 2*time.Second)
		assert.NoError(t, err)
		second <- reply
	}()

	select {
	case <-second:
		t.Fatal("leased worker served a second caller before release")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, worker.Tell("done", nil))

	select {
	case reply := <-second:
		assert.Same(t, worker, reply.(started).worker)
	case <-time.After(time.Second):
		t.Fatal("second caller never served after release")
	}
}

func TestLeaseTimeoutAbandonsWorker(t *testing.T) {
	sys := newTestSystem(t)
	ref, err := sys.Spawn(Props{
		New:  leaseWorker().New,
		Pool: &PoolConfig{Max: 1, Lease: true, LeaseTimeout: 40 * time.Millisecond},
	})
	require.NoError(t, err)

	first, err := sys.AskTimeout(ref, "start", time.Second)
	require.NoError(t, err)
	abandoned := first.(started).worker

	select {
	case <-abandoned.Done():
	case <-time.After(time.Second):
		t.Fatal("worker past its lease was not stopped")
	}

	next, err := sys.AskTimeout(ref, "start", time.Second)
	require.NoError(t, err)
	assert.NotSame(t, abandoned, next.(started).worker)
}

func TestLeaseHonoursMessageDeadline(t *testing.T) {
	sys := newTestSystem(t)
	ref, err := sys.Spawn(Props{
		New:  leaseWorker().New,
		Pool: &PoolConfig{Max: 1, Lease: true, LeaseTimeout: 40 * time.Millisecond},
	})
	require.NoError(t, err)

	first, err := sys.AskTimeout(ref, boundedStart{until: time.Now().Add(500 * time.Millisecond)}, time.Second)
	require.NoError(t, err)
	worker := first.(started).worker

	// well past LeaseTimeout but inside the message's own deadline
	select {
	case <-worker.Done():
		t.Fatal("worker abandoned before the message deadline")
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case <-worker.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker past the message deadline was not stopped")
	}
}

func TestPoolReclaimsIdleWorkers(t *testing.T) {
	sys := newTestSystem(t)
	ref, err := sys.Spawn(Props{
		New:  leaseWorker().New,
		Pool: &PoolConfig{Min: 0, Max: 2, IdleTimeout: 30 * time.Millisecond},
	})
	require.NoError(t, err)

	reply, err := sys.AskTimeout(ref, "start", time.Second)
	require.NoError(t, err)
	worker := reply.(started).worker

	select {
	case <-worker.Done():
	case <-time.After(time.Second):
		t.Fatal("idle worker above the floor was not reclaimed")
	}
	assert.True(t, ref.Alive())
}

func TestPoolKeepsFloor(t *testing.T) {
	sys := newTestSystem(t)
	ref, err := sys.Spawn(Props{
		New:  leaseWorker().New,
		Pool: &PoolConfig{Min: 1, Max: 1, IdleTimeout: 10 * time.Millisecond},
	})
	require.NoError(t, err)

	reply, err := sys.AskTimeout(ref, "start", time.Second)
	require.NoError(t, err)
	worker := reply.(started).worker

	time.Sleep(100 * time.Millisecond)
	assert.True(t, worker.Alive())
}

func TestStoppingPoolStopsWorkers(t *testing.T) {
	sys := newTestSystem(t)
	ref, err := sys.Spawn(Props{New: leaseWorker().New, Pool: &PoolConfig{Min: 1, Max: 1}})
	require.NoError(t, err)

	reply, err := sys.AskTimeout(ref, "start", time.Second)
	require.NoError(t, err)
	worker := reply.(started).worker

	require.NoError(t, ref.Tell(ExitRequest{}, nil))
	<-ref.Done()
	select {
	case <-worker.Done():
	case <-time.After(time.Second):
		t.Fatal("worker outlived its pool")
	}
}
