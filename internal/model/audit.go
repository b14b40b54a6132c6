package model

import "time"

// AuditEvent is the GORM model for the audit_events table. Metadata is stored
// as a JSON string; the signature column holds the hex HMAC over the canonical
// event payload.
type AuditEvent struct {
	ID           uint64    `gorm:"primaryKey;column:id;autoIncrement"`
	EventID      string    `gorm:"column:event_id;type:char(36);uniqueIndex;not null"`
	EventTime    time.Time `gorm:"column:event_time;type:datetime(6);index;not null"`
	EventType    string    `gorm:"column:event_type;type:varchar(40);index;not null"`
	Severity     string    `gorm:"column:severity;type:varchar(10);index;not null"`
	UserID       string    `gorm:"column:user_id;type:varchar(64);index"`
	Action       string    `gorm:"column:action;type:varchar(255);not null"`
	ResourceType string    `gorm:"column:resource_type;type:varchar(64)"`
	ResourceID   string    `gorm:"column:resource_id;type:varchar(128)"`
	Metadata     string    `gorm:"column:metadata;type:json"`
	RiskScore    int       `gorm:"column:risk_score;not null;default:0"`
	IPAddress    string    `gorm:"column:ip_address;type:varchar(45)"`
	Signature    string    `gorm:"column:signature;type:char(64)"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (AuditEvent) TableName() string {
	return "audit_events"
}

// AuditRollup is the GORM model for the audit_rollups table: hourly per-type
// aggregates produced by the cron job so dashboards don't scan raw events.
type AuditRollup struct {
	ID          uint64    `gorm:"primaryKey;column:id;autoIncrement"`
	BucketStart time.Time `gorm:"column:bucket_start;uniqueIndex:uq_bucket_type;not null"`
	EventType   string    `gorm:"column:event_type;type:varchar(40);uniqueIndex:uq_bucket_type;not null"`
	Total       int64     `gorm:"column:total;not null;default:0"`
	Critical    int64     `gorm:"column:critical;not null;default:0"`
	MaxRisk     int       `gorm:"column:max_risk;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (AuditRollup) TableName() string {
	return "audit_rollups"
}
