package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"

	"TradeGuard/pkg/metrics"
	"TradeGuard/pkg/resilience"
)

// AlertNotifier delivers high-risk events to an external channel (webhook,
// pager, chat). Dispatch runs on the logger's isolated alert worker with its
// own timeout; implementations own their retry policy.
type AlertNotifier interface {
	Dispatch(ctx context.Context, e *Event) error
	Name() string
}

// LoggerConfig bounds the logger's queues and timeouts.
type LoggerConfig struct {
	// QueueSize bounds the primary write buffer. Default 1000.
	QueueSize int
	// AlertQueueSize bounds the alert dispatch queue. Default 256.
	AlertQueueSize int
	// AlertTimeout bounds one alert dispatch attempt. Default 10s.
	AlertTimeout time.Duration
	// ParkedSize bounds the in-memory store of last resort holding events
	// whose persistence failed. Default 1024.
	ParkedSize int
}

func (c *LoggerConfig) withDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	if c.AlertQueueSize <= 0 {
		c.AlertQueueSize = 256
	}
	if c.AlertTimeout <= 0 {
		c.AlertTimeout = 10 * time.Second
	}
	if c.ParkedSize <= 0 {
		c.ParkedSize = 1024
	}
}

// Logger is the append-only audit sink. Log assigns identity, scores risk,
// signs, and enqueues; a dedicated writer goroutine persists off the caller's
// critical path, and a separate alert worker dispatches CRITICAL/high-risk
// events so a slow alert channel can never stall logging.
//
// Buffer-full policy is drop-oldest-with-a-counter: the business response
// never depends on audit persistence succeeding synchronously.
type Logger struct {
	store    Store
	signer   *Signer
	notifier AlertNotifier
	config   LoggerConfig

	queue      chan *Event
	alertQueue chan *Event
	parked     *RingStore
	retrier    *resilience.Retrier
	logger     *log.Helper

	mu     sync.RWMutex // guards enqueue against Close
	closed bool
	wg     sync.WaitGroup

	droppedWrites atomic.Int64
	droppedAlerts atomic.Int64
	parkedCount   atomic.Int64
}

// NewLogger creates and starts an audit logger. The notifier may be nil, in
// which case alert-worthy events are only counted. Close must be called to
// flush the queues on shutdown.
func NewLogger(store Store, signer *Signer, notifier AlertNotifier, cfg LoggerConfig, l log.Logger) *Logger {
	cfg.withDefaults()

	// Persistence failures get a short bounded retry before an event is
	// parked; the writer goroutine absorbs the backoff, never the caller.
	retrier, _ := resilience.NewRetrier("audit-store", resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Jitter:       true,
	})

	al := &Logger{
		store:      store,
		signer:     signer,
		notifier:   notifier,
		config:     cfg,
		queue:      make(chan *Event, cfg.QueueSize),
		alertQueue: make(chan *Event, cfg.AlertQueueSize),
		parked:     NewRingStore(cfg.ParkedSize),
		retrier:    retrier,
		logger:     log.NewHelper(l),
	}

	al.wg.Add(2)
	go al.writeLoop()
	go al.alertLoop()

	return al
}

// Log accepts an event, assigns its identity, and returns the event ID
// immediately. The write happens asynchronously; Log never blocks on
// persistence and never fails the caller's business operation.
func (l *Logger) Log(ctx context.Context, e *Event) string {
	if e == nil {
		return ""
	}

	e.EventID = uuid.New().String()
	// Microsecond precision matches the datetime(6) event_time column, so the
	// signature still verifies after a database round trip.
	e.Timestamp = time.Now().UTC().Truncate(time.Microsecond)
	e.normalize()
	if l.signer != nil {
		e.Signature = l.signer.Sign(e)
	}

	metrics.AuditEvents.WithLabelValues(string(e.EventType), string(e.Severity)).Inc()
	metrics.AuditRiskScore.Observe(float64(e.RiskScore))

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		l.droppedWrites.Add(1)
		metrics.AuditEventsDropped.WithLabelValues("closed").Inc()
		return e.EventID
	}

	if e.AlertWorthy() && l.notifier != nil {
		select {
		case l.alertQueue <- e:
		default:
			l.droppedAlerts.Add(1)
			metrics.AuditEventsDropped.WithLabelValues("alert_queue_full").Inc()
			l.logger.Warnw("msg", "alert queue full, dropping alert",
				"event_id", e.EventID,
				"event_type", e.EventType,
				"risk_score", e.RiskScore)
		}
	}

	select {
	case l.queue <- e:
	default:
		// Buffer full: evict the oldest queued event, count it, and keep
		// the newest. The caller is never blocked.
		select {
		case old := <-l.queue:
			l.droppedWrites.Add(1)
			metrics.AuditEventsDropped.WithLabelValues("buffer_full").Inc()
			l.logger.Warnw("msg", "audit buffer full, dropping oldest event",
				"dropped_event_id", old.EventID,
				"dropped_event_type", old.EventType)
		default:
		}
		select {
		case l.queue <- e:
		default:
			l.droppedWrites.Add(1)
			metrics.AuditEventsDropped.WithLabelValues("buffer_full").Inc()
		}
	}

	return e.EventID
}

// Query returns events matching the filter from the primary store.
func (l *Logger) Query(ctx context.Context, f Filter) ([]*Event, error) {
	return l.store.Query(ctx, f)
}

// Rates computes rolling error/violation rates over the window for
// dashboards.
func (l *Logger) Rates(ctx context.Context, window time.Duration) (*Rates, error) {
	stats, err := l.store.Stats(ctx, window)
	if err != nil {
		return nil, err
	}

	minutes := window.Minutes()
	if minutes <= 0 {
		minutes = 1
	}

	return &Rates{
		Stats:               *stats,
		ErrorsPerMinute:     float64(stats.Errors) / minutes,
		ViolationsPerMinute: float64(stats.Violations) / minutes,
	}, nil
}

// Verify recomputes the event's signature against the stored one.
func (l *Logger) Verify(e *Event) (bool, error) {
	if l.signer == nil {
		return true, nil
	}
	return l.signer.Verify(e)
}

// Parked returns the store of last resort holding events whose persistence
// failed. Exposed for health reporting and tests.
func (l *Logger) Parked() *RingStore {
	return l.parked
}

// Dropped returns how many events were lost on the write and alert paths.
func (l *Logger) Dropped() (writes, alerts int64) {
	return l.droppedWrites.Load(), l.droppedAlerts.Load()
}

// Close stops intake, drains both queues, and waits for the workers.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	close(l.queue)
	close(l.alertQueue)
	l.wg.Wait()
}

// writeLoop drains the primary queue into the store. A failed append is
// retried briefly, then parked in the in-memory ring so the event is not
// silently lost; the already-returned event ID stands either way.
func (l *Logger) writeLoop() {
	defer l.wg.Done()

	for e := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := l.retrier.Do(ctx, func(ctx context.Context) (interface{}, error) {
			return nil, l.store.Append(ctx, e)
		})
		cancel()

		if err != nil {
			l.parkedCount.Add(1)
			metrics.AuditEventsDropped.WithLabelValues("store_error").Inc()
			_ = l.parked.Append(context.Background(), e)
			l.logger.Warnw("msg", "audit persistence failed, event parked in memory",
				"event_id", e.EventID,
				"event_type", e.EventType,
				"error", err)
		}
	}
}

// alertLoop dispatches alert-worthy events with a per-attempt timeout,
// isolated from the write path.
func (l *Logger) alertLoop() {
	defer l.wg.Done()

	for e := range l.alertQueue {
		ctx, cancel := context.WithTimeout(context.Background(), l.config.AlertTimeout)
		err := l.notifier.Dispatch(ctx, e)
		cancel()

		if err != nil {
			metrics.AlertDispatches.WithLabelValues("error").Inc()
			l.logger.Warnw("msg", "alert dispatch failed",
				"notifier", l.notifier.Name(),
				"event_id", e.EventID,
				"event_type", e.EventType,
				"risk_score", e.RiskScore,
				"error", err)
			continue
		}
		metrics.AlertDispatches.WithLabelValues("ok").Inc()
	}
}

// Rates is the dashboard-facing view of Stats with per-minute rates derived.
type Rates struct {
	Stats
	ErrorsPerMinute     float64 `json:"errors_per_minute"`
	ViolationsPerMinute float64 `json:"violations_per_minute"`
}
