package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-go-utils/retry"

	"github.com/quantumauth-io/quantum-swap-agent/internal/metrics"
)

const (
	defaultQueueSize       = 64
	defaultDeliveryTimeout = 30 * time.Second
	defaultRetryDelay      = 500 * time.Millisecond
)

type QueueConfig struct {
	Size            int           `mapstructure:"queueSize"`
	DeliveryTimeout time.Duration `mapstructure:"deliveryTimeout"`
	RetryDelay      time.Duration `mapstructure:"retryDelay"`
}

// Queue fans events out to its sinks from a single consumer goroutine.
type Queue struct {
	sinks []Sink
	cfg   QueueConfig
	ch    chan Event

	mu      sync.RWMutex
	closed  bool
	started atomic.Bool
	done    chan struct{}
}

func NewQueue(cfg QueueConfig, sinks ...Sink) *Queue {
	if cfg.Size <= 0 {
		cfg.Size = defaultQueueSize
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = defaultDeliveryTimeout
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Queue{
		sinks: sinks,
		cfg:   cfg,
		ch:    make(chan Event, cfg.Size),
		done:  make(chan struct{}),
	}
}

// Publish enqueues e and reports whether it was accepted. It never blocks: a
// full or closed queue drops the event.
func (q *Queue) Publish(e Event) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- e:
		return true
	default:
		log.Warn("notification queue full, dropping event", "id", e.ID.String(), "kind", string(e.Kind))
		metrics.NotificationFailures.WithLabelValues("queue").Inc()
		return false
	}
}

// Start runs the consumer until Close drains the queue or ctx ends.
func (q *Queue) Start(ctx context.Context) {
	if !q.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(q.done)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-q.ch:
				if !ok {
					return
				}
				q.deliver(ctx, e)
			}
		}
	}()
}

// Close stops intake and waits for queued events to be delivered.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	q.mu.Unlock()
	if q.started.Load() {
		<-q.done
	}
}

func (q *Queue) deliver(ctx context.Context, e Event) {
	for _, sink := range q.sinks {
		if err := q.deliverTo(ctx, sink, e); err != nil {
			metrics.NotificationFailures.WithLabelValues(sink.Name()).Inc()
			log.Warn("notification delivery failed", "sink", sink.Name(), "id", e.ID.String(), "error", err)
		}
	}
}

func (q *Queue) deliverTo(ctx context.Context, sink Sink, e Event) error {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.DeliveryTimeout)
	defer cancel()

	cfg := retry.DefaultConfig()
	cfg.InitialDelayBeforeRetrying = q.cfg.RetryDelay
	cfg.MaxDelayBeforeRetrying = q.cfg.RetryDelay * 8

	_, err := retry.Retry(ctx, cfg,
		func(ctx context.Context) ([]interface{}, error) {
			return nil, sink.Deliver(ctx, e)
		},
		nil,
		"deliver notification to "+sink.Name())
	return err
}
