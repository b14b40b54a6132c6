package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"

	"TradeGuard/internal/model"
	"TradeGuard/pkg/audit"
	pkgerrors "TradeGuard/pkg/errors"
)

// AuditRepo is the relational audit.Store backend. Events append into the
// audit_events table; the cron job folds them into audit_rollups and purges
// expired rows.
type AuditRepo struct {
	db     *gorm.DB
	logger *log.Helper
}

// NewAuditRepo creates the MySQL-backed audit store.
func NewAuditRepo(db *gorm.DB, logger log.Logger) *AuditRepo {
	return &AuditRepo{
		db:     db,
		logger: log.NewHelper(logger),
	}
}

// toModel converts a wire event into its GORM row.
func toModel(e *audit.Event) (*model.AuditEvent, error) {
	meta := ""
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		meta = string(b)
	}
	return &model.AuditEvent{
		EventID:      e.EventID,
		EventTime:    e.Timestamp.UTC(),
		EventType:    string(e.EventType),
		Severity:     string(e.Severity),
		UserID:       e.UserID,
		Action:       e.Action,
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		Metadata:     meta,
		RiskScore:    e.RiskScore,
		IPAddress:    e.IPAddress,
		Signature:    e.Signature,
	}, nil
}

// fromModel converts a GORM row back into a wire event.
func fromModel(row *model.AuditEvent) *audit.Event {
	e := &audit.Event{
		EventID:      row.EventID,
		Timestamp:    row.EventTime.UTC(),
		EventType:    audit.EventType(row.EventType),
		Severity:     audit.Severity(row.Severity),
		UserID:       row.UserID,
		Action:       row.Action,
		ResourceType: row.ResourceType,
		ResourceID:   row.ResourceID,
		RiskScore:    row.RiskScore,
		IPAddress:    row.IPAddress,
		Signature:    row.Signature,
	}
	if row.Metadata != "" {
		var meta map[string]interface{}
		if err := json.Unmarshal([]byte(row.Metadata), &meta); err == nil {
			e.Metadata = meta
		}
	}
	return e
}

// Append persists one event. Duplicate event IDs are treated as already
// recorded (the logger retries store failures, so replays are expected).
func (r *AuditRepo) Append(ctx context.Context, e *audit.Event) error {
	row, err := toModel(e)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		dbErr := pkgerrors.ClassifyDBError(err)

		switch dbErr.Type {
		case pkgerrors.ErrorTypeDuplicateKey:
			// Retried append of the same event, not a failure.
			r.logger.Debugw("audit event already recorded",
				"event_id", e.EventID,
				"event_type", e.EventType)
			return nil
		case pkgerrors.ErrorTypeConnectionError, pkgerrors.ErrorTypeDeadlock:
			r.logger.Warnw("transient audit append failure",
				"event_id", e.EventID,
				"error", dbErr.Error())
		default:
			r.logger.Errorw("failed to append audit event",
				"event_id", e.EventID,
				"event_type", e.EventType,
				"error", dbErr.Error())
		}
		return dbErr
	}
	return nil
}

// Query returns events matching the filter, newest first.
func (r *AuditRepo) Query(ctx context.Context, f audit.Filter) ([]*audit.Event, error) {
	q := r.db.WithContext(ctx).Model(&model.AuditEvent{})

	if len(f.EventTypes) > 0 {
		types := make([]string, 0, len(f.EventTypes))
		for _, t := range f.EventTypes {
			types = append(types, string(t))
		}
		q = q.Where("event_type IN ?", types)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Severity != "" {
		q = q.Where("severity = ?", string(f.Severity))
	}
	if !f.Since.IsZero() {
		q = q.Where("event_time >= ?", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		q = q.Where("event_time <= ?", f.Until.UTC())
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}

	var rows []*model.AuditEvent
	if err := q.Order("event_time DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		r.logger.Errorw("failed to query audit events", "error", err)
		return nil, fmt.Errorf("query audit events: %w", err)
	}

	events := make([]*audit.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, fromModel(row))
	}
	return events, nil
}

// GetByEventID fetches a single event for signature verification.
func (r *AuditRepo) GetByEventID(ctx context.Context, eventID string) (*audit.Event, error) {
	var row model.AuditEvent
	if err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", model.ErrEventNotFound, eventID)
		}
		r.logger.Errorw("failed to get audit event", "event_id", eventID, "error", err)
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	return fromModel(&row), nil
}

// Stats aggregates counts over the trailing window with a single grouped scan.
func (r *AuditRepo) Stats(ctx context.Context, window time.Duration) (*audit.Stats, error) {
	cutoff := time.Now().UTC().Add(-window)

	var rows []struct {
		EventType string
		Severity  string
		Count     int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.AuditEvent{}).
		Select("event_type, severity, COUNT(*) AS count").
		Where("event_time >= ?", cutoff).
		Group("event_type, severity").
		Find(&rows).Error
	if err != nil {
		r.logger.Errorw("failed to aggregate audit stats", "error", err)
		return nil, fmt.Errorf("audit stats: %w", err)
	}

	stats := &audit.Stats{Window: window}
	for _, row := range rows {
		stats.Total += row.Count
		switch audit.EventType(row.EventType) {
		case audit.EventAuthFailure, audit.EventCircuitTrip, audit.EventFallbackInvoked:
			stats.Errors += row.Count
		case audit.EventSecurityViolation:
			stats.Violations += row.Count
		}
		if audit.Severity(row.Severity) == audit.SeverityCritical {
			stats.Critical += row.Count
		}
	}
	return stats, nil
}

// Rollup folds raw events from the given hourly bucket into audit_rollups.
// Re-running a bucket replaces its rows, so the cron job is idempotent.
func (r *AuditRepo) Rollup(ctx context.Context, bucketStart time.Time) error {
	bucketStart = bucketStart.UTC().Truncate(time.Hour)
	bucketEnd := bucketStart.Add(time.Hour)

	var rows []struct {
		EventType string
		Total     int64
		Critical  int64
		MaxRisk   int
	}
	err := r.db.WithContext(ctx).
		Model(&model.AuditEvent{}).
		Select("event_type, COUNT(*) AS total, SUM(CASE WHEN severity = ? THEN 1 ELSE 0 END) AS critical, MAX(risk_score) AS max_risk",
			string(audit.SeverityCritical)).
		Where("event_time >= ? AND event_time < ?", bucketStart, bucketEnd).
		Group("event_type").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("rollup scan: %w", err)
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bucket_start = ?", bucketStart).Delete(&model.AuditRollup{}).Error; err != nil {
			return fmt.Errorf("clear rollup bucket: %w", err)
		}
		for _, row := range rows {
			rollup := &model.AuditRollup{
				BucketStart: bucketStart,
				EventType:   row.EventType,
				Total:       row.Total,
				Critical:    row.Critical,
				MaxRisk:     row.MaxRisk,
			}
			if err := tx.Create(rollup).Error; err != nil {
				return fmt.Errorf("write rollup row: %w", err)
			}
		}
		return nil
	})
}

// Purge deletes raw events older than the cutoff in bounded batches so
// retention runs don't hold long row locks. Rollups are kept.
func (r *AuditRepo) Purge(ctx context.Context, olderThan time.Time) (int64, error) {
	const batchSize = 1000

	var total int64
	for {
		res := r.db.WithContext(ctx).
			Where("event_time < ?", olderThan.UTC()).
			Limit(batchSize).
			Delete(&model.AuditEvent{})
		if res.Error != nil {
			return total, fmt.Errorf("purge audit events: %w", res.Error)
		}
		total += res.RowsAffected
		if res.RowsAffected < batchSize {
			break
		}
	}

	if total > 0 {
		r.logger.Infow("purged expired audit events", "count", total, "older_than", olderThan.UTC())
	}
	return total, nil
}
