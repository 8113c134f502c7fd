package core_services

import (
	"go.uber.org/fx"

	"registre-patient-core/internal/modules/core-services/brouillon"
	"registre-patient-core/internal/modules/core-services/pthn"
)

// Module regroupe tous les services métier centralisés (Core Services)
// Ces services sont réutilisables par plusieurs modules sans avoir d'endpoints propres
var Module = fx.Options(
	// Registre PTHN (identités, séquence, protocole d'enregistrement)
	pthn.Module,

	// Brouillons de formulaire d'enregistrement (MongoDB, consultatif)
	brouillon.Module,
)
