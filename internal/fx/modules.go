package fx

import (
	"scout-sync/internal/config"
	"scout-sync/internal/database"
	"scout-sync/internal/identity"
	"scout-sync/internal/logger"
	"scout-sync/internal/repository"
	"scout-sync/internal/resolver"
	"scout-sync/internal/server"
	"scout-sync/internal/stats"
	"scout-sync/internal/syncer"
	"scout-sync/internal/transport"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(identity.Load),
	// repos
	fx.Provide(repository.NewRecordRepository),
	fx.Provide(repository.NewTeamStatsRepository),
	// core
	fx.Provide(resolver.New),
	fx.Provide(stats.NewRecalculator),
	// sync
	fx.Provide(syncer.NewClient),
	fx.Provide(transport.NewSession),
	fx.Provide(syncer.NewOrchestrator),
	// api
	fx.Provide(server.NewAPI),
)
