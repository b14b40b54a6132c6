package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"TradeGuard/internal/biz"
	"TradeGuard/internal/model"
	"TradeGuard/pkg/audit"
	pkglog "TradeGuard/pkg/log"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
)

// maxQueryLimit caps a single audit query regardless of what the caller asks
// for; the repo enforces the same bound.
const maxQueryLimit = 1000

// AuditService exposes the audit trail over the ops HTTP API: event
// ingestion, queries, tamper verification, and rate summaries.
type AuditService struct {
	uc     *biz.AuditUsecase
	logger *log.Helper
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(uc *biz.AuditUsecase, logger log.Logger) *AuditService {
	return &AuditService{
		uc:     uc,
		logger: log.NewHelper(logger),
	}
}

// IngestEventRequest is the POST body for manual event ingestion. RiskScore
// is a pointer so an explicit zero survives decoding.
type IngestEventRequest struct {
	EventType    string                 `json:"event_type"`
	Severity     string                 `json:"severity,omitempty"`
	UserID       string                 `json:"user_id,omitempty"`
	Action       string                 `json:"action"`
	ResourceType string                 `json:"resource_type,omitempty"`
	ResourceID   string                 `json:"resource_id,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	RiskScore    *int                   `json:"risk_score,omitempty"`
	IPAddress    string                 `json:"ip_address,omitempty"`
}

// IngestEventReply acknowledges an accepted event with its assigned ID.
type IngestEventReply struct {
	EventID  string `json:"event_id"`
	Accepted bool   `json:"accepted"`
}

// IngestEvent validates and enqueues one caller-supplied audit event. The
// client IP from the request context wins over the body when present.
func (s *AuditService) IngestEvent(ctx context.Context, req *IngestEventRequest) (*IngestEventReply, error) {
	if req.EventType == "" {
		return nil, errors.BadRequest("MISSING_EVENT_TYPE", "event_type is required")
	}
	if req.Action == "" {
		return nil, errors.BadRequest("MISSING_ACTION", "action is required")
	}

	e := &audit.Event{
		EventType:    audit.EventType(req.EventType),
		Severity:     audit.Severity(req.Severity),
		UserID:       req.UserID,
		Action:       req.Action,
		ResourceType: req.ResourceType,
		ResourceID:   req.ResourceID,
		Metadata:     req.Metadata,
		IPAddress:    req.IPAddress,
	}
	if req.RiskScore != nil {
		e.SetRiskScore(*req.RiskScore)
	}
	if ip := pkglog.GetRemoteIP(ctx); ip != "" && ip != "unknown" {
		e.IPAddress = ip
	}
	if e.UserID == "" {
		e.UserID = pkglog.GetClientID(ctx)
	}

	id := s.uc.Record(ctx, e)
	s.logger.Debugw("IngestEvent accepted", "event_id", id, "event_type", req.EventType)

	return &IngestEventReply{EventID: id, Accepted: true}, nil
}

// ListEventsRequest carries the audit query filters as query parameters.
type ListEventsRequest struct {
	EventType string `form:"event_type"`
	UserID    string `form:"user_id"`
	Severity  string `form:"severity"`
	Since     string `form:"since"`
	Until     string `form:"until"`
	Limit     int    `form:"limit"`
}

// ListEventsReply wraps a page of matching events, newest first.
type ListEventsReply struct {
	Events []*audit.Event `json:"events"`
	Count  int            `json:"count"`
}

// ListEvents queries the persisted audit trail.
func (s *AuditService) ListEvents(ctx context.Context, req *ListEventsRequest) (*ListEventsReply, error) {
	f := audit.Filter{
		UserID:   req.UserID,
		Severity: audit.Severity(req.Severity),
		Limit:    req.Limit,
	}
	if req.EventType != "" {
		f.EventTypes = []audit.EventType{audit.EventType(req.EventType)}
	}
	if req.Since != "" {
		t, err := time.Parse(time.RFC3339, req.Since)
		if err != nil {
			return nil, errors.BadRequest("INVALID_SINCE", fmt.Sprintf("since must be RFC3339: %v", err))
		}
		f.Since = t
	}
	if req.Until != "" {
		t, err := time.Parse(time.RFC3339, req.Until)
		if err != nil {
			return nil, errors.BadRequest("INVALID_UNTIL", fmt.Sprintf("until must be RFC3339: %v", err))
		}
		f.Until = t
	}
	if f.Limit < 0 || f.Limit > maxQueryLimit {
		return nil, errors.BadRequest("INVALID_LIMIT", fmt.Sprintf("limit must be between 0 and %d", maxQueryLimit))
	}

	events, err := s.uc.Query(ctx, f)
	if err != nil {
		s.logger.Errorw("ListEvents query failed", "error", err)
		return nil, errors.InternalServer("QUERY_FAILED", "audit query failed")
	}

	return &ListEventsReply{Events: events, Count: len(events)}, nil
}

// VerifyEventReply reports whether a stored event's HMAC signature still
// matches its content.
type VerifyEventReply struct {
	EventID  string       `json:"event_id"`
	Valid    bool         `json:"valid"`
	Tampered bool         `json:"tampered"`
	Event    *audit.Event `json:"event"`
}

// VerifyEvent recomputes the signature of one stored event.
func (s *AuditService) VerifyEvent(ctx context.Context, eventID string) (*VerifyEventReply, error) {
	if eventID == "" {
		return nil, errors.BadRequest("MISSING_EVENT_ID", "event id is required")
	}

	e, valid, err := s.uc.Verify(ctx, eventID)
	if err != nil {
		if stderrors.Is(err, model.ErrEventNotFound) {
			return nil, errors.NotFound("EVENT_NOT_FOUND", err.Error())
		}
		s.logger.Errorw("VerifyEvent failed", "event_id", eventID, "error", err)
		return nil, errors.InternalServer("VERIFY_FAILED", "signature verification failed")
	}
	if !valid {
		s.logger.Warnw("audit event failed signature verification", "event_id", eventID)
	}

	return &VerifyEventReply{
		EventID:  eventID,
		Valid:    valid,
		Tampered: !valid,
		Event:    e,
	}, nil
}

// GetRatesRequest selects the rate window in minutes; zero uses the default.
type GetRatesRequest struct {
	WindowMinutes int `form:"window_minutes"`
}

// GetRates returns event counts and per-minute error rates over the window.
func (s *AuditService) GetRates(ctx context.Context, req *GetRatesRequest) (*audit.Rates, error) {
	if req.WindowMinutes < 0 || req.WindowMinutes > 24*60 {
		return nil, errors.BadRequest("INVALID_WINDOW", "window_minutes must be between 0 and 1440")
	}

	rates, err := s.uc.Rates(ctx, time.Duration(req.WindowMinutes)*time.Minute)
	if err != nil {
		s.logger.Errorw("GetRates failed", "error", err)
		return nil, errors.InternalServer("RATES_FAILED", "rate computation failed")
	}
	return rates, nil
}
