package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/segmentio/kafka-go"

	"TradeGuard/internal/conf"
	"TradeGuard/pkg/audit"
	"TradeGuard/pkg/metrics"
)

// KafkaExporter streams audit events to the SIEM topic. Export is best-effort:
// a broker outage never blocks the audit path, failed exports are counted and
// logged. With no brokers configured the exporter is disabled.
type KafkaExporter struct {
	writer *kafka.Writer
	logger *log.Helper
	mu     sync.Mutex
	closed bool
}

// NewKafkaExporter creates the SIEM exporter from config. The cleanup flushes
// pending batches.
func NewKafkaExporter(c *conf.Kafka, logger log.Logger) (*KafkaExporter, func()) {
	helper := log.NewHelper(logger)

	if c == nil || len(c.Brokers) == 0 {
		helper.Info("kafka brokers not configured, SIEM export disabled")
		e := &KafkaExporter{logger: helper}
		return e, func() {}
	}

	topic := c.Topic
	if topic == "" {
		topic = "tradeguard.audit"
	}
	batchTimeout := c.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: batchTimeout,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}

	helper.Infow("kafka SIEM exporter created",
		"brokers", c.Brokers,
		"topic", topic)

	e := &KafkaExporter{
		writer: writer,
		logger: helper,
	}
	cleanup := func() {
		if err := e.Close(); err != nil {
			helper.Warnw("failed to close kafka exporter", "error", err)
		}
	}
	return e, cleanup
}

// Enabled reports whether exports will actually reach a broker.
func (e *KafkaExporter) Enabled() bool {
	return e.writer != nil
}

// Export publishes one event to the SIEM topic, keyed by event ID so replays
// land on the same partition.
func (e *KafkaExporter) Export(ctx context.Context, event *audit.Event) error {
	if e.writer == nil {
		metrics.SIEMExports.WithLabelValues("skipped").Inc()
		return nil
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		metrics.SIEMExports.WithLabelValues("error").Inc()
		return fmt.Errorf("kafka exporter is closed")
	}
	e.mu.Unlock()

	value, err := json.Marshal(event)
	if err != nil {
		metrics.SIEMExports.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.EventID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.EventType)},
			{Key: "severity", Value: []byte(event.Severity)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		metrics.SIEMExports.WithLabelValues("error").Inc()
		e.logger.Warnw("failed to export audit event to kafka",
			"event_id", event.EventID,
			"event_type", event.EventType,
			"error", err)
		return fmt.Errorf("failed to write to kafka: %w", err)
	}

	metrics.SIEMExports.WithLabelValues("ok").Inc()
	return nil
}

// Close flushes and closes the underlying writer.
func (e *KafkaExporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed || e.writer == nil {
		e.closed = true
		return nil
	}
	e.closed = true

	if err := e.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}
