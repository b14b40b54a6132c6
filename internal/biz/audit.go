package biz

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"TradeGuard/internal/conf"
	"TradeGuard/internal/model"
	"TradeGuard/pkg/audit"
)

// Rate counter classes tracked in Redis per minute bucket.
const (
	rateClassTotal      = "total"
	rateClassErrors     = "errors"
	rateClassViolations = "violations"
	rateClassCritical   = "critical"
)

// AuditRepo is the persistence contract for audit events.
// Following Kratos v2 DDD architecture, interface is defined in biz layer.
type AuditRepo interface {
	audit.Store
	GetByEventID(ctx context.Context, eventID string) (*audit.Event, error)
	Rollup(ctx context.Context, bucketStart time.Time) error
	Purge(ctx context.Context, olderThan time.Time) (int64, error)
}

// RateRepo is the Redis-backed rolling counter contract.
type RateRepo interface {
	Available() bool
	Incr(ctx context.Context, class string) (int64, error)
	WindowCount(ctx context.Context, class string, window time.Duration) (int64, error)
	RecordTrip(ctx context.Context, trip *model.TripRecord) error
	RecentTrips(ctx context.Context, limit int) ([]*model.TripRecord, error)
}

// SIEMExporter streams persisted events to an external sink.
type SIEMExporter interface {
	Enabled() bool
	Export(ctx context.Context, e *audit.Event) error
}

// AuditUsecase is the single entry point for recording and querying audit
// events. Every event, whether from the ops API or from internal hooks, flows
// through Record: the async logger persists and signs it, Redis counters track
// rolling rates, and the SIEM exporter streams a copy.
type AuditUsecase struct {
	log       *audit.Logger
	repo      AuditRepo
	rates     RateRepo
	exporter  SIEMExporter
	retention time.Duration
	logger    *log.Helper
}

// NewAuditUsecase wires the async audit logger over the relational store and
// installs the alert dispatcher's audit recorder. The returned cleanup drains
// the logger's queues.
func NewAuditUsecase(
	c *conf.Audit,
	repo AuditRepo,
	rates RateRepo,
	exporter SIEMExporter,
	dispatcher *AlertDispatcher,
	l log.Logger,
) (*AuditUsecase, func(), error) {
	if c == nil {
		c = &conf.Audit{}
	}

	signer, err := audit.NewSigner(c.SigningKey)
	if err != nil {
		return nil, nil, fmt.Errorf("audit signer: %w", err)
	}

	al := audit.NewLogger(repo, signer, dispatcher, audit.LoggerConfig{
		QueueSize:      c.QueueSize,
		AlertQueueSize: c.AlertQueueSize,
		AlertTimeout:   c.AlertTimeout,
	}, l)

	uc := &AuditUsecase{
		log:       al,
		repo:      repo,
		rates:     rates,
		exporter:  exporter,
		retention: c.Retention,
		logger:    log.NewHelper(l),
	}

	// Successful alert deliveries become audit events themselves. Bound late
	// because the dispatcher is constructed before the usecase.
	dispatcher.bindRecorder(func(ctx context.Context, e *audit.Event) {
		uc.Record(ctx, e)
	})

	cleanup := func() {
		al.Close()
	}
	return uc, cleanup, nil
}

// Record accepts an event and returns its assigned ID immediately; the write,
// alert, counter, and export paths all run off the caller's critical path.
func (uc *AuditUsecase) Record(ctx context.Context, e *audit.Event) string {
	id := uc.log.Log(ctx, e)

	uc.bumpCounters(ctx, e)

	if uc.exporter != nil && uc.exporter.Enabled() {
		// Fire-and-forget; the exporter counts and logs its own failures.
		go func(e *audit.Event) {
			exportCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = uc.exporter.Export(exportCtx, e)
		}(e)
	}

	return id
}

// bumpCounters feeds the Redis minute buckets behind Rates.
func (uc *AuditUsecase) bumpCounters(ctx context.Context, e *audit.Event) {
	bump := func(class string) {
		if _, err := uc.rates.Incr(ctx, class); err != nil {
			uc.logger.Warnw("rate counter increment failed",
				"class", class,
				"error", err)
		}
	}

	bump(rateClassTotal)
	switch e.EventType {
	case audit.EventAuthFailure, audit.EventCircuitTrip, audit.EventFallbackInvoked:
		bump(rateClassErrors)
	case audit.EventSecurityViolation:
		bump(rateClassViolations)
	}
	if e.Severity == audit.SeverityCritical {
		bump(rateClassCritical)
	}
}

// Query returns persisted events matching the filter, newest first.
func (uc *AuditUsecase) Query(ctx context.Context, f audit.Filter) ([]*audit.Event, error) {
	return uc.log.Query(ctx, f)
}

// Verify fetches an event and recomputes its signature against the stored
// one. The event is returned so callers can show what was checked.
func (uc *AuditUsecase) Verify(ctx context.Context, eventID string) (*audit.Event, bool, error) {
	e, err := uc.repo.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, false, err
	}
	ok, err := uc.log.Verify(e)
	if err != nil {
		return e, false, err
	}
	return e, ok, nil
}

// Rates computes rolling rates over the window from the Redis counters,
// degrading to a SQL scan when Redis is unavailable.
func (uc *AuditUsecase) Rates(ctx context.Context, window time.Duration) (*audit.Rates, error) {
	if window <= 0 {
		window = 5 * time.Minute
	}

	if !uc.rates.Available() {
		uc.logger.Warn("redis unavailable, deriving audit rates from SQL")
		return uc.log.Rates(ctx, window)
	}

	read := func(class string) (int64, error) {
		n, err := uc.rates.WindowCount(ctx, class, window)
		if err != nil {
			return 0, fmt.Errorf("rate window %s: %w", class, err)
		}
		return n, nil
	}

	total, err := read(rateClassTotal)
	if err != nil {
		uc.logger.Warnw("redis rate read failed, deriving audit rates from SQL", "error", err)
		return uc.log.Rates(ctx, window)
	}
	errs, err := read(rateClassErrors)
	if err != nil {
		return nil, err
	}
	violations, err := read(rateClassViolations)
	if err != nil {
		return nil, err
	}
	critical, err := read(rateClassCritical)
	if err != nil {
		return nil, err
	}

	minutes := window.Minutes()
	return &audit.Rates{
		Stats: audit.Stats{
			Window:     window,
			Total:      total,
			Errors:     errs,
			Violations: violations,
			Critical:   critical,
		},
		ErrorsPerMinute:     float64(errs) / minutes,
		ViolationsPerMinute: float64(violations) / minutes,
	}, nil
}

// RollupHour folds the raw events of the given hour into the rollup table.
func (uc *AuditUsecase) RollupHour(ctx context.Context, bucketStart time.Time) error {
	return uc.repo.Rollup(ctx, bucketStart)
}

// PurgeExpired deletes events older than the configured retention. With no
// retention configured it is a no-op: purging stays an administrative choice.
func (uc *AuditUsecase) PurgeExpired(ctx context.Context) (int64, error) {
	if uc.retention <= 0 {
		return 0, nil
	}
	return uc.repo.Purge(ctx, time.Now().Add(-uc.retention))
}

// Dropped exposes the logger's drop counters for the status surface.
func (uc *AuditUsecase) Dropped() (writes, alerts int64) {
	return uc.log.Dropped()
}
