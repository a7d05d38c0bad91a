package restarter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRestarterSucceedsOnFirstProbe(t *testing.T) {
	var successes, failures int32
	r := New(5, time.Millisecond, func() bool { return true },
		func() { atomic.AddInt32(&successes, 1) },
		func() { atomic.AddInt32(&failures, 1) },
		nil,
	)
	r.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&successes) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&failures))
}

func TestRestarterSucceedsAfterRetries(t *testing.T) {
	var attempts int32
	var successes int32
	r := New(5, time.Millisecond, func() bool {
		return atomic.AddInt32(&attempts, 1) >= 3
	}, func() { atomic.AddInt32(&successes, 1) }, nil, nil)
	r.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&successes) == 1 }, time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&attempts), int32(3))
}

func TestRestarterFiresFailureOnExhaustion(t *testing.T) {
	var failures int32
	r := New(3, time.Millisecond, func() bool { return false },
		nil,
		func() { atomic.AddInt32(&failures, 1) },
		nil,
	)
	r.Start(context.Background())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&failures) == 1 }, time.Second, time.Millisecond)
}

func TestRestarterCancelSuppressesCallbacks(t *testing.T) {
	var successes, failures int32
	r := New(1000, time.Millisecond, func() bool { return false },
		func() { atomic.AddInt32(&successes, 1) },
		func() { atomic.AddInt32(&failures, 1) },
		nil,
	)
	r.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	r.Cancel()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&successes))
	assert.Equal(t, int32(0), atomic.LoadInt32(&failures))
}

func TestRestarterCallbackFiresExactlyOnce(t *testing.T) {
	var fires int32
	r := New(1, time.Millisecond, func() bool { return true },
		func() { atomic.AddInt32(&fires, 1) },
		func() { atomic.AddInt32(&fires, 1) },
		nil,
	)
	r.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&fires))
}
