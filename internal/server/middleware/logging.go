package middleware

import (
	"context"
	"strings"
	"time"

	"TradeGuard/pkg/audit"
	pkglog "TradeGuard/pkg/log"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// slowRequestThresholdMs flags requests slower than this for the scheduler to
// look at.
const slowRequestThresholdMs = 3000

// RequestAudit 返回请求审计中间件
// 生成 Request ID、注入 Request Context、记录请求日志
// 变更类请求（POST/PUT/PATCH/DELETE）额外写入 API_CALL 审计事件
//
// 日志输出示例:
//
//	🟢 GET /v1/resilience/status - 200 (12ms) | RequestID: mgrn0zfqda
//	🐌 [mgrn0zfqda] Slow request detected | POST /v1/audit/events | 3438ms
func RequestAudit(recorder EventRecorder, logger *pkglog.LogHelper) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			startTime := time.Now()

			var (
				method    string
				path      string
				ip        string
				userAgent string
				requestID string
			)

			// 提取请求信息
			if tr, ok := transport.FromServerContext(ctx); ok {
				method = tr.Operation()
				path = tr.Operation()

				if ht, ok := tr.(http.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path

					ip = extractClientIP(httpReq)
					userAgent = httpReq.Header.Get("User-Agent")

					// 提取或生成 Request ID
					requestID = httpReq.Header.Get("X-Request-ID")
					if requestID == "" {
						requestID = pkglog.GenerateRequestID()
					}
				}
			}

			// 注入 Request Context，后续所有日志自动携带追踪信息
			clientID := clientIDFrom(ctx)
			ctx = pkglog.WithRequestContext(ctx, requestID, clientID, ip)

			reply, err := handler(ctx, req)

			duration := time.Since(startTime).Milliseconds()
			status := statusFromError(err)

			logger.RequestWithContext(ctx, method, path, status, duration,
				"ip", ip,
				"user_agent", userAgent,
			)
			if duration > slowRequestThresholdMs {
				logger.SlowRequest(ctx, method, path, duration, slowRequestThresholdMs)
			}

			// 变更类请求写入审计轨迹
			if isMutating(method) && !publicPaths[path] {
				recorder.Record(ctx, &audit.Event{
					EventType: audit.EventAPICall,
					UserID:    clientID,
					Action:    method + " " + path,
					IPAddress: ip,
					Metadata: map[string]interface{}{
						"method":      method,
						"path":        path,
						"status":      status,
						"duration_ms": duration,
						"request_id":  requestID,
					},
				})
			}

			return reply, err
		}
	}
}

// isMutating reports whether the HTTP method changes state.
func isMutating(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

// extractClientIP 从请求中提取客户端真实 IP
// 优先级: X-Real-IP > X-Forwarded-For > RemoteAddr
func extractClientIP(req *http.Request) string {
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	// X-Forwarded-For 取第一个 IP
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	return req.RemoteAddr
}

// statusFromError maps a handler error to the HTTP status the encoder will
// write.
func statusFromError(err error) int {
	if err == nil {
		return 200
	}
	if se := kerrors.FromError(err); se != nil {
		return int(se.Code)
	}
	return 500
}
