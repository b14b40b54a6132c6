// Package biz contains business logic layer implementations.
// This layer holds the core business rules and domain models.
package biz

import (
	"github.com/google/wire"

	"TradeGuard/internal/data"
	"TradeGuard/pkg/resilience"
)

// ProviderSet is biz providers.
var ProviderSet = wire.NewSet(
	NewAuditUsecase,
	NewResilienceUsecase,
	NewAlertDispatcher,
	// Bind data layer implementations to biz layer interfaces
	wire.Bind(new(AuditRepo), new(*data.AuditRepo)),
	wire.Bind(new(RateRepo), new(*data.RateCounter)),
	wire.Bind(new(SIEMExporter), new(*data.KafkaExporter)),
	wire.Bind(new(resilience.ValueCache), new(*data.FallbackCache)),
)
