package service

import (
	"context"
	"time"

	"TradeGuard/internal/biz"
	"TradeGuard/internal/model"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// StatusService serves the health probe and the resilience status endpoint.
type StatusService struct {
	resilience *biz.ResilienceUsecase
	auditUC    *biz.AuditUsecase
	started    time.Time
	logger     *log.Helper
}

// NewStatusService creates a new StatusService instance.
func NewStatusService(resilience *biz.ResilienceUsecase, auditUC *biz.AuditUsecase, logger log.Logger) *StatusService {
	return &StatusService{
		resilience: resilience,
		auditUC:    auditUC,
		started:    time.Now(),
		logger:     log.NewHelper(logger),
	}
}

// HealthReply is the liveness probe response.
type HealthReply struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	DroppedWrites int64  `json:"dropped_audit_writes"`
	DroppedAlerts int64  `json:"dropped_alerts"`
}

// Healthz reports liveness plus the audit pipeline's drop counters, so a
// saturated queue is visible before events go missing silently.
func (s *StatusService) Healthz(ctx context.Context) (*HealthReply, error) {
	writes, alerts := s.auditUC.Dropped()
	return &HealthReply{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		DroppedWrites: writes,
		DroppedAlerts: alerts,
	}, nil
}

// Status returns every registered breaker's live state plus recent trips.
func (s *StatusService) Status(ctx context.Context) (*model.ResilienceStatus, error) {
	status, err := s.resilience.Status(ctx)
	if err != nil {
		s.logger.Errorw("Status failed", "error", err)
		return nil, errors.InternalServer("STATUS_FAILED", "resilience status unavailable")
	}
	return status, nil
}
