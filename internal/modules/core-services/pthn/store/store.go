package store

import (
	"context"

	"registre-patient-core/internal/modules/core-services/pthn/dto"
)

// Atomic expose les opérations disponibles à l'intérieur d'une unité de
// travail sérialisable. Le compteur annuel et l'index d'unicité des identités
// sont les deux seules ressources partagées mutables : ils sont protégés par
// la même frontière transactionnelle pour que leurs écritures soient
// tout-ou-rien ensemble.
type Atomic interface {
	// GetIdentite relit le registre d'identités dans l'unité courante
	// (vérification autoritative). Retourne (nil, nil) si absente.
	GetIdentite(ctx context.Context, typePiece, numeroPiece string) (*dto.Identite, error)

	// LockSequence crée le compteur de l'année à 0 s'il n'existe pas, puis
	// lit dernier_numero sous verrou exclusif. Le verrou tient jusqu'au
	// commit/rollback de l'unité et sérialise les allocations concurrentes.
	LockSequence(ctx context.Context, annee int) (int, error)

	// SaveSequence persiste le numéro fraîchement attribué. Uniquement
	// appelée sous le verrou pris par LockSequence.
	SaveSequence(ctx context.Context, annee, numero int) error

	// InsertIdentite insère l'identité avec son PTHN. Les violations
	// d'unicité sont traduites en erreurs du registre (jamais propagées brutes).
	InsertIdentite(ctx context.Context, identite *dto.Identite) error
}

// Store est la frontière storage du registre PTHN.
// L'implémentation PostgreSQL est l'autorité en production ; l'implémentation
// mémoire sert aux tests et au mode développement sans base.
type Store interface {
	// GetIdentite est la lecture consultative (hors transaction, possiblement
	// périmée à la soumission). Retourne (nil, nil) si absente.
	GetIdentite(ctx context.Context, typePiece, numeroPiece string) (*dto.Identite, error)

	// GetSequenceState lit l'état du compteur d'une année sans verrou
	// (stats, aperçu). Retourne (nil, nil) si le compteur n'existe pas encore.
	GetSequenceState(ctx context.Context, annee int) (*dto.SequenceState, error)

	// SeedSequence pré-initialise le compteur d'une année à 0 (idempotent).
	SeedSequence(ctx context.Context, annee int) error

	// RunAtomic exécute fn dans une unité de travail sérialisable avec
	// attente de verrou bornée. Si fn retourne une erreur ou si le caller
	// abandonne, l'unité est intégralement annulée : ni incrément de
	// compteur partiel, ni ligne d'identité orpheline.
	RunAtomic(ctx context.Context, fn func(tx Atomic) error) error
}
