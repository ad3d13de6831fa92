package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mhollis-dev/fieldops-api/internal/models"
)

// Handler consumes a decision event. Handlers run on dispatcher workers and
// must not block indefinitely.
type Handler func(context.Context, models.DecisionEvent) error

// DispatcherConfig configures worker behaviour.
type DispatcherConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Dispatcher fans decision events out to registered handlers. It is the
// in-process seam where downstream consumers (payout reporting, notification
// hooks) attach without coupling to the approval path.
type Dispatcher struct {
	workers    int
	bufferSize int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger

	handlers []Handler

	events  chan envelope
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
}

type envelope struct {
	event   models.DecisionEvent
	attempt int
}

// NewDispatcher builds a dispatcher with sane defaults.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		workers:    cfg.Workers,
		bufferSize: cfg.BufferSize,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     cfg.Logger,
		events:     make(chan envelope, cfg.BufferSize),
	}
}

// Subscribe registers a handler. Must be called before Start.
func (d *Dispatcher) Subscribe(handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		d.logger.Warn("subscribe after start ignored")
		return
	}
	d.handlers = append(d.handlers, handler)
}

// Start begins worker consumption. Safe to call once.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.started = true
	d.logger.Sugar().Infow("event dispatcher started", "workers", d.workers, "handlers", len(d.handlers))
}

// Stop cancels workers and waits for them to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Sugar().Infow("event dispatcher stopped")
}

// Publish enqueues a decision event for asynchronous delivery.
func (d *Dispatcher) Publish(event models.DecisionEvent) error {
	d.mu.Lock()
	ctx := d.ctx
	started := d.started
	d.mu.Unlock()

	if !started {
		return fmt.Errorf("dispatcher not started")
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("dispatcher stopped: %w", ctx.Err())
	case d.events <- envelope{event: event}:
		return nil
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case env := <-d.events:
			d.deliver(env)
		}
	}
}

func (d *Dispatcher) deliver(env envelope) {
	for _, handler := range d.handlers {
		if err := handler(d.ctx, env.event); err != nil {
			d.handleFailure(env, err)
			return
		}
	}
}

func (d *Dispatcher) handleFailure(env envelope, err error) {
	env.attempt++
	if env.attempt > d.maxRetries {
		d.logger.Sugar().Errorw("decision event exceeded retries",
			"submission_id", env.event.SubmissionID, "outcome", env.event.Outcome, "error", err)
		return
	}
	d.logger.Sugar().Warnw("decision event handler failed, retrying",
		"submission_id", env.event.SubmissionID, "attempt", env.attempt, "error", err)

	go func(e envelope) {
		timer := time.NewTimer(d.retryDelay)
		defer timer.Stop()
		select {
		case <-d.ctx.Done():
			return
		case <-timer.C:
			select {
			case <-d.ctx.Done():
			case d.events <- e:
			}
		}
	}(env)
}
