//go:build ignore
// +build ignore

package main

import (
	"TradeGuard/internal/conf"
	pkglog "TradeGuard/pkg/log"
)

func main() {
	// 创建日志配置
	logConf := &conf.Log{
		Level:  "debug",
		Format: "console", // 使用 console 格式以启用 Emoji Encoder
		Env:    "development",
	}

	// 创建 Zap logger
	zapLogger, err := pkglog.NewZapLogger(logConf)
	if err != nil {
		panic(err)
	}

	// 创建 Kratos adapter
	kratosLogger := pkglog.NewKratosAdapter(zapLogger)

	// 创建 LogHelper
	helper := pkglog.NewLogHelper(kratosLogger)

	// 测试各种日志类型
	println("=== 测试日志输出格式 ===\n")

	helper.Startup("TradeGuard service starting", "version", "1.0.0", "port", 8080)
	helper.API("Processing API request", "endpoint", "/v1/audit/events", "method", "POST")
	helper.Auth("Ops token validated", "client", "ops", "duration_ms", 1)
	helper.Request("POST", "/v1/audit/events", 202, 12, "ip", "192.168.1.100", "user_agent", "curl/8.5.0")
	helper.Database("Query executed successfully", "table", "audit_events", "duration_ms", 5)
	helper.Redis("Rate bucket incremented", "key", "audit_rate:errors:29512345", "count", 3)
	helper.Kafka("Event exported to SIEM topic", "topic", "tradeguard.audit", "event_id", "evt-123")
	helper.Breaker("Circuit breaker opened", "circuit", "pricing-api", "consecutive_failures", 5)
	helper.Retry("Retrying transient failure", "policy", "default", "attempt", 2, "delay_ms", 200)
	helper.Fallback("Serving cached value", "circuit", "pricing-api", "kind", "cache")
	helper.Audit("Audit event persisted", "event_type", "AUTH_FAILURE", "risk_score", 60)
	helper.Alert("Security alert dispatched", "notifier", "webhook", "event_id", "evt-123")
	helper.Security("Suspicious activity detected", "ip", "10.0.0.1", "reason", "invalid ops token")
	helper.Scheduler("Hourly rollup completed", "bucket", "2026-08-30T14:00:00Z", "rows", 1240)
	helper.Performance("Operation completed", "operation", "audit_query", "duration_ms", 250)
	helper.Success("Request completed successfully", "request_id", "req-789")

	// 测试便捷方法
	helper.BreakerTripped("pricing-api", 5)
	helper.BreakerRecovered("pricing-api")
	helper.FallbackServed("pricing-api", "cache", 3)

	println("\n=== 日志输出完成 ===")
}
