package pthn

import (
	"go.uber.org/fx"

	"registre-patient-core/internal/app/config"
	"registre-patient-core/internal/infrastructure/database/postgres"
	"registre-patient-core/internal/infrastructure/database/redis"
	"registre-patient-core/internal/infrastructure/metrics"
	"registre-patient-core/internal/modules/core-services/pthn/services"
	"registre-patient-core/internal/modules/core-services/pthn/store"
)

// Module regroupe les services métier centralisés du registre PTHN.
// IMPORTANT: Ce module ne contient PAS de controllers (Core Services sans endpoints)
var Module = fx.Options(
	// Store authoritatif PostgreSQL (transactions Serializable)
	fx.Provide(NewRegistreStore),

	// Services Core - Identité, allocation, protocole d'enregistrement
	fx.Provide(NewIdentiteRegistry),
	fx.Provide(NewPTHNAllocator),
	fx.Provide(NewEnregistrement),
)

// NewRegistreStore provider du store PostgreSQL exposé sous l'interface store.Store
func NewRegistreStore(
	db *postgres.Client,
	txManager *postgres.TransactionManager,
	cfg *config.Config,
) store.Store {
	return store.NewPostgresStore(db, txManager, cfg.Registre.LockTimeout)
}

// NewIdentiteRegistry provider du registre d'identités (cache Redis consultatif)
func NewIdentiteRegistry(st store.Store, redisClient *redis.Client, cfg *config.Config) *services.IdentiteRegistryService {
	return services.NewIdentiteRegistryService(st, redisClient, cfg.Registre.CacheIdentiteTTL)
}

// NewPTHNAllocator provider de l'allocateur de séquence
func NewPTHNAllocator(st store.Store, redisClient *redis.Client, cfg *config.Config) *services.PTHNAllocatorService {
	return services.NewPTHNAllocatorService(st, redisClient, cfg.Registre.CacheSequenceTTL)
}

// NewEnregistrement provider du protocole d'enregistrement atomique.
// Aucun persisteur de dossier n'est branché dans la transaction : les
// brouillons vivent dans MongoDB, hors du chemin authoritatif.
func NewEnregistrement(
	st store.Store,
	registry *services.IdentiteRegistryService,
	allocator *services.PTHNAllocatorService,
	m *metrics.Metrics,
	cfg *config.Config,
) *services.EnregistrementService {
	return services.NewEnregistrementService(
		st,
		registry,
		allocator,
		nil,
		m,
		cfg.Registre.MaxTentatives,
		cfg.Registre.RetryBackoff,
	)
}
