package offline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prober reports whether the server is currently reachable.
type Prober interface {
	Online(ctx context.Context) bool
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) bool

// Online implements Prober.
func (f ProberFunc) Online(ctx context.Context) bool { return f(ctx) }

// Monitor polls connectivity and fires a callback on the offline to online
// transition, which is the moment a queued device should attempt a drain.
type Monitor struct {
	prober   Prober
	interval time.Duration
	onOnline func(context.Context)
	logger   *zap.Logger

	mu      sync.Mutex
	online  bool
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewMonitor builds a monitor. The callback runs on the monitor goroutine.
func NewMonitor(prober Prober, interval time.Duration, onOnline func(context.Context), logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		onOnline: onOnline,
		logger:   logger,
	}
}

// Start begins polling. Safe to call once.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.started = true
	go m.loop(ctx)
}

// Stop halts polling and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.cancel()
	done := m.done
	m.mu.Unlock()
	<-done
}

// Online reports the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	online := m.prober.Online(ctx)

	m.mu.Lock()
	wasOnline := m.online
	m.online = online
	m.mu.Unlock()

	if online && !wasOnline {
		m.logger.Info("connectivity restored")
		if m.onOnline != nil {
			m.onOnline(ctx)
		}
	} else if !online && wasOnline {
		m.logger.Warn("connectivity lost")
	}
}
