package app

import (
	"registre-patient-core/internal/app/bootstrap"
	"registre-patient-core/internal/app/config"
	"registre-patient-core/internal/infrastructure/database"
	"registre-patient-core/internal/infrastructure/logger"
	"registre-patient-core/internal/infrastructure/metrics"
	core_services "registre-patient-core/internal/modules/core-services"
	"registre-patient-core/internal/modules/front-office/enregistrement"
	"registre-patient-core/internal/shared/middleware/security"

	"go.uber.org/fx"
)

var AppModule = fx.Options(
	// Configuration (doit être fournie en premier)
	fx.Provide(config.NewConfig),
	fx.Provide(config.NewPostgresConfig),
	fx.Provide(config.NewRedisConfig),
	fx.Provide(config.NewMongoConfig),

	// Infrastructure
	database.Module,
	logger.Module,
	metrics.Module,

	// Middlewares partagés (après infrastructure, avant modules métier)
	fx.Provide(security.CORSMiddleware),

	// Modules métier
	core_services.Module,
	enregistrement.Module,

	// Bootstrap System - Providers
	fx.Provide(bootstrap.NewBootstrapMigrationManager),
	fx.Provide(bootstrap.NewBootstrapSeedingManager),
	fx.Provide(bootstrap.NewBootstrapSystem),

	// Router
	fx.Provide(NewRouter),

	// Application
	fx.Provide(NewApplication),

	// Lifecycle management
	fx.Invoke(bootstrap.RegisterBootstrapLifecycle),
	fx.Invoke((*Application).Start),
)
