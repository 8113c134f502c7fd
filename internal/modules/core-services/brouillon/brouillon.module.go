package brouillon

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"registre-patient-core/internal/modules/core-services/brouillon/services"
)

// Module des brouillons de formulaire (MongoDB, hors chemin authoritatif)
var Module = fx.Options(
	fx.Provide(services.NewBrouillonService),
	fx.Invoke(RegisterIndexes),
)

// RegisterIndexes crée l'index TTL au démarrage, sans bloquer l'application
// si MongoDB est indisponible
func RegisterIndexes(lc fx.Lifecycle, service *services.BrouillonService) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := service.EnsureIndexes(ctx); err != nil {
				fmt.Printf("[BROUILLON] ⚠️ Index TTL non créé: %v\n", err)
			}
			return nil
		},
	})
}
