package offline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorFiresOnOnlineTransition(t *testing.T) {
	var reachable atomic.Bool
	var fired atomic.Int32

	monitor := NewMonitor(
		ProberFunc(func(ctx context.Context) bool { return reachable.Load() }),
		5*time.Millisecond,
		func(ctx context.Context) { fired.Add(1) },
		nil,
	)
	monitor.Start(context.Background())
	defer monitor.Stop()

	require.Eventually(t, func() bool { return !monitor.Online() }, time.Second, time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())

	reachable.Store(true)
	require.Eventually(t, func() bool { return monitor.Online() }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, time.Millisecond)

	// Staying online must not re-fire the callback.
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, int32(1), fired.Load())
}

func TestMonitorStopHaltsPolling(t *testing.T) {
	var probes atomic.Int32
	monitor := NewMonitor(
		ProberFunc(func(ctx context.Context) bool { probes.Add(1); return true }),
		5*time.Millisecond,
		nil,
		nil,
	)
	monitor.Start(context.Background())
	require.Eventually(t, func() bool { return probes.Load() > 0 }, time.Second, time.Millisecond)

	monitor.Stop()
	settled := probes.Load()
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, settled, probes.Load())
}
