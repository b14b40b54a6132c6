package server

import (
	"context"
	stderrors "errors"
	nethttp "net/http"

	"TradeGuard/internal/biz"
	"TradeGuard/internal/conf"
	"TradeGuard/internal/server/middleware"
	"TradeGuard/internal/service"
	pkglog "TradeGuard/pkg/log"
	"TradeGuard/pkg/metrics"
	"TradeGuard/pkg/resilience"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(
	c *conf.Server,
	ops *conf.Ops,
	auditSvc *service.AuditService,
	statusSvc *service.StatusService,
	auditUC *biz.AuditUsecase,
	logger log.Logger,
) *http.Server {
	// 创建增强的日志辅助器
	logHelper := pkglog.NewLogHelper(logger)

	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Auth(ops, auditUC, logHelper),    // 认证中间件：校验 ops token，记录认证失败
			middleware.RequestAudit(auditUC, logHelper), // 请求审计中间件：记录请求日志和 API_CALL 事件
		),
		http.ErrorEncoder(errorEncoder),
	}
	if c.Http != nil {
		if c.Http.Network != "" {
			opts = append(opts, http.Network(c.Http.Network))
		}
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout > 0 {
			opts = append(opts, http.Timeout(c.Http.Timeout))
		}
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, auditSvc, statusSvc)
	srv.Handle("/metrics", metrics.MetricsHandler())

	return srv
}

// registerRoutes wires the ops API routes. The service has no protobuf
// surface, so routes are registered directly.
func registerRoutes(srv *http.Server, auditSvc *service.AuditService, statusSvc *service.StatusService) {
	r := srv.Route("/")

	r.GET("/healthz", func(ctx http.Context) error {
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return statusSvc.Healthz(c)
		})
		reply, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, reply)
	})

	r.GET("/v1/resilience/status", func(ctx http.Context) error {
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return statusSvc.Status(c)
		})
		reply, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, reply)
	})

	r.POST("/v1/audit/events", func(ctx http.Context) error {
		var req service.IngestEventRequest
		if err := ctx.Bind(&req); err != nil {
			return kerrors.BadRequest("INVALID_BODY", err.Error())
		}
		h := ctx.Middleware(func(c context.Context, in interface{}) (interface{}, error) {
			return auditSvc.IngestEvent(c, in.(*service.IngestEventRequest))
		})
		reply, err := h(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusAccepted, reply)
	})

	r.GET("/v1/audit/events", func(ctx http.Context) error {
		var req service.ListEventsRequest
		if err := ctx.BindQuery(&req); err != nil {
			return kerrors.BadRequest("INVALID_QUERY", err.Error())
		}
		h := ctx.Middleware(func(c context.Context, in interface{}) (interface{}, error) {
			return auditSvc.ListEvents(c, in.(*service.ListEventsRequest))
		})
		reply, err := h(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, reply)
	})

	r.GET("/v1/audit/events/{id}/verify", func(ctx http.Context) error {
		id := ctx.Vars().Get("id")
		h := ctx.Middleware(func(c context.Context, _ interface{}) (interface{}, error) {
			return auditSvc.VerifyEvent(c, id)
		})
		reply, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, reply)
	})

	r.GET("/v1/audit/rates", func(ctx http.Context) error {
		var req service.GetRatesRequest
		if err := ctx.BindQuery(&req); err != nil {
			return kerrors.BadRequest("INVALID_QUERY", err.Error())
		}
		h := ctx.Middleware(func(c context.Context, in interface{}) (interface{}, error) {
			return auditSvc.GetRates(c, in.(*service.GetRatesRequest))
		})
		reply, err := h(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(nethttp.StatusOK, reply)
	})
}

// errorEncoder maps resilience failures to 503 before falling back to the
// default kratos encoding, so callers can tell an open circuit from a bug.
func errorEncoder(w nethttp.ResponseWriter, r *nethttp.Request, err error) {
	var open *resilience.CircuitOpenError
	var exhausted *resilience.RetryExhaustedError
	if stderrors.As(err, &open) {
		err = kerrors.ServiceUnavailable("CIRCUIT_OPEN", open.Error())
	} else if stderrors.As(err, &exhausted) {
		err = kerrors.ServiceUnavailable("RETRY_EXHAUSTED", exhausted.Error())
	}
	http.DefaultErrorEncoder(w, r, err)
}
