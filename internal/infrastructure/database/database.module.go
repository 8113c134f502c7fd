package database

import (
	"go.uber.org/fx"

	"registre-patient-core/internal/infrastructure/database/mongodb"
	"registre-patient-core/internal/infrastructure/database/postgres"
	"registre-patient-core/internal/infrastructure/database/redis"
)

var Module = fx.Options(

	// Modules database
	postgres.Module,
	redis.Module,
	mongodb.Module,
)
