package main

import (
	"context"
	"time"

	"TradeGuard/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
)

// cronServer 将定时任务接入 Kratos 生命周期
// 作为 transport.Server 注册后，随应用启动和优雅停止
//
// 任务计划:
//   - 每小时第 5 分钟：汇总上一小时的审计事件到 rollup 表
//   - 每天 03:30：清理超过保留期的审计事件
type cronServer struct {
	cron    *cron.Cron
	auditUC *biz.AuditUsecase
	logger  *log.Helper
}

func newCronServer(auditUC *biz.AuditUsecase, logger log.Logger) (*cronServer, error) {
	s := &cronServer{
		cron:    cron.New(cron.WithSeconds()),
		auditUC: auditUC,
		logger:  log.NewHelper(logger),
	}

	// Cron 表达式：秒 分 时 日 月 周
	if _, err := s.cron.AddFunc("0 5 * * * *", s.rollupPreviousHour); err != nil {
		return nil, err
	}
	if _, err := s.cron.AddFunc("0 30 3 * * *", s.purgeExpired); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins job scheduling. It does not block.
func (s *cronServer) Start(_ context.Context) error {
	s.cron.Start()
	s.logger.Info("audit maintenance cron started: hourly rollup, daily retention purge")
	return nil
}

// Stop waits for running jobs to finish.
func (s *cronServer) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.logger.Info("audit maintenance cron stopped")
	return nil
}

// rollupPreviousHour 汇总上一个完整小时的审计事件
func (s *cronServer) rollupPreviousHour() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	bucket := time.Now().UTC().Truncate(time.Hour).Add(-time.Hour)
	if err := s.auditUC.RollupHour(ctx, bucket); err != nil {
		s.logger.Errorw("hourly audit rollup failed", "bucket", bucket, "error", err)
		return
	}
	s.logger.Infow("hourly audit rollup completed", "bucket", bucket)
}

// purgeExpired 删除超过保留期的审计事件
// 未配置保留期时任务直接返回
func (s *cronServer) purgeExpired() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	deleted, err := s.auditUC.PurgeExpired(ctx)
	if err != nil {
		s.logger.Errorw("audit retention purge failed", "error", err)
		return
	}
	if deleted > 0 {
		s.logger.Infow("audit retention purge completed", "deleted", deleted)
	}
}
