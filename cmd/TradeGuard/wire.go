//go:build wireinject
// +build wireinject

// The build tag makes sure the stub is not built in the final build.

package main

import (
	"TradeGuard/internal/biz"
	"TradeGuard/internal/conf"
	"TradeGuard/internal/data"
	"TradeGuard/internal/server"
	"TradeGuard/internal/service"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
)

// wireApp init kratos application.
func wireApp(*conf.Server, *conf.Ops, *conf.Data, *conf.Audit, *conf.Resilience, log.Logger) (*kratos.App, func(), error) {
	panic(wire.Build(
		data.ProviderSet,
		biz.ProviderSet,
		service.ProviderSet,
		server.ProviderSet,
		newKafkaConf,
		newCronServer,
		newApp,
	))
}
