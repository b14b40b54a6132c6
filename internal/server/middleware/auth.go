// Package middleware provides HTTP middleware for ops authentication and
// request auditing.
package middleware

import (
	"context"
	"crypto/subtle"
	"strings"

	"TradeGuard/internal/conf"
	"TradeGuard/pkg/audit"
	pkglog "TradeGuard/pkg/log"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// clientIDContextKey carries the authenticated caller identity from the
	// auth middleware to the request-audit middleware.
	clientIDContextKey contextKey = "client_id"
)

// EventRecorder accepts audit events from the middleware chain.
// *biz.AuditUsecase satisfies it.
type EventRecorder interface {
	Record(ctx context.Context, e *audit.Event) string
}

// publicPaths bypass ops authentication: liveness probes and the metrics
// scrape must work without a token.
var publicPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// Auth 返回 ops API 的认证中间件
// 校验静态 Bearer Token，认证失败时写入审计事件
//
// Token 未配置时放行所有请求（开发模式），启动日志会给出警告
func Auth(ops *conf.Ops, recorder EventRecorder, logger *pkglog.LogHelper) middleware.Middleware {
	var token string
	if ops != nil {
		token = ops.Token
	}
	if token == "" {
		logger.Security("ops token not configured, API authentication disabled")
	}

	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			path, ip := requestPathAndIP(ctx)

			// 健康检查和指标端点不需要认证
			if token == "" || publicPaths[path] {
				return handler(ctx, req)
			}

			// 提取 Authorization header，支持 "Bearer {token}" 格式
			presented := bearerToken(ctx)
			if presented == "" {
				recorder.Record(ctx, &audit.Event{
					EventType: audit.EventAuthFailure,
					Action:    "ops_token_missing",
					IPAddress: ip,
					Metadata: map[string]interface{}{
						"path": path,
					},
				})
				logger.Security("request without ops token rejected", "path", path, "ip", ip)
				return nil, kerrors.Unauthorized("MISSING_TOKEN", "ops token required")
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				// 错误的 Token 视为安全违规：可能是暴力破解或凭据泄露
				recorder.Record(ctx, &audit.Event{
					EventType: audit.EventSecurityViolation,
					Action:    "ops_token_invalid",
					IPAddress: ip,
					Metadata: map[string]interface{}{
						"path":            path,
						"presented_token": maskToken(presented),
					},
				})
				logger.Security("request with invalid ops token rejected", "path", path, "ip", ip)
				return nil, kerrors.Unauthorized("INVALID_TOKEN", "ops token rejected")
			}

			// 认证通过，将调用方身份注入上下文供审计中间件使用
			ctx = context.WithValue(ctx, clientIDContextKey, "ops")
			return handler(ctx, req)
		}
	}
}

// bearerToken extracts the bearer token from the Authorization header, falling
// back to X-API-Key.
func bearerToken(ctx context.Context) string {
	tr, ok := transport.FromServerContext(ctx)
	if !ok {
		return ""
	}
	ht, ok := tr.(http.Transporter)
	if !ok {
		return ""
	}
	req := ht.Request()

	if auth := req.Header.Get("Authorization"); auth != "" {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return req.Header.Get("X-API-Key")
}

// requestPathAndIP pulls the URL path and client IP from the transport.
func requestPathAndIP(ctx context.Context) (path, ip string) {
	tr, ok := transport.FromServerContext(ctx)
	if !ok {
		return "", ""
	}
	path = tr.Operation()
	if ht, ok := tr.(http.Transporter); ok {
		req := ht.Request()
		path = req.URL.Path
		ip = extractClientIP(req)
	}
	return path, ip
}

// maskToken 脱敏 Token，仅显示前 8 位
// 示例: "tg-1234567890abcdef" -> "tg-12345***"
func maskToken(token string) string {
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:8] + "***"
}

// clientIDFrom returns the authenticated caller identity, if any.
func clientIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(clientIDContextKey).(string); ok {
		return v
	}
	return ""
}
