package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"registre-patient-core/internal/infrastructure/database/redis"
	"registre-patient-core/internal/modules/core-services/pthn/dto"
	"registre-patient-core/internal/modules/core-services/pthn/store"
)

// PTHNAllocatorService est l'autorité du compteur annuel : attribue le
// prochain numéro de séquence sous verrou, dans l'unité de travail de
// l'enregistrement. Jamais appelé seul d'une façon observable sans le commit
// d'identité associé.
type PTHNAllocatorService struct {
	store     store.Store
	redis     *redis.Client
	redisKeys *PTHNRedisKeys
	statsTTL  time.Duration
}

// NewPTHNAllocatorService crée une nouvelle instance du service.
// redis peut être nil : l'aperçu et les stats lisent alors PostgreSQL.
func NewPTHNAllocatorService(st store.Store, redisClient *redis.Client, statsTTL time.Duration) *PTHNAllocatorService {
	if statsTTL <= 0 {
		statsTTL = 5 * time.Second
	}
	return &PTHNAllocatorService{
		store:     st,
		redis:     redisClient,
		redisKeys: NewPTHNRedisKeys(),
		statsTTL:  statsTTL,
	}
}

// AllocateNext attribue le prochain numéro de l'année dans l'unité de travail
// tx. Le verrou pris par LockSequence sérialise les demandes concurrentes :
// deux allocations de la même année produisent toujours des numéros
// consécutifs, sans doublon ni trou (un trou n'apparaît que si l'unité
// porteuse est ensuite annulée pour une raison indépendante — comportement
// attendu, pas un bug).
func (s *PTHNAllocatorService) AllocateNext(ctx context.Context, tx store.Atomic, annee int) (int, error) {
	dernierNumero, err := tx.LockSequence(ctx, annee)
	if err != nil {
		return 0, err
	}

	if dernierNumero >= dto.SequenceMax {
		// Capacité épuisée : on n'incrémente rien, le compteur reste à 9999
		return 0, dto.NewCapaciteError(annee)
	}

	numero := dernierNumero + 1
	if err := tx.SaveSequence(ctx, annee, numero); err != nil {
		return 0, err
	}

	return numero, nil
}

// PreviewNext calcule le prochain PTHN probable sans rien réserver.
// Purement indicatif (affichage du numéro prospectif pendant la saisie du
// formulaire) : la valeur peut être périmée à la soumission.
func (s *PTHNAllocatorService) PreviewNext(ctx context.Context, annee int) (string, error) {
	state, err := s.sequenceState(ctx, annee)
	if err != nil {
		return "", err
	}

	dernierNumero := 0
	if state != nil {
		dernierNumero = state.DernierNumero
	}
	if dernierNumero >= dto.SequenceMax {
		return "", dto.NewCapaciteError(annee)
	}

	return FormatPTHN(annee, dernierNumero+1), nil
}

// GetSequenceStats retourne les statistiques d'attribution pour le monitoring
func (s *PTHNAllocatorService) GetSequenceStats(ctx context.Context, annee int) (*dto.SequenceStats, error) {
	state, err := s.sequenceState(ctx, annee)
	if err != nil {
		return nil, err
	}

	if state == nil {
		return &dto.SequenceStats{
			Annee:        annee,
			DernierPTHN:  "Aucun",
			ProchainPTHN: FormatPTHN(annee, dto.SequenceMin),
		}, nil
	}

	stats := &dto.SequenceStats{
		Annee:            annee,
		DernierNumero:    state.DernierNumero,
		NombreGeneres:    state.NombreGeneres,
		CapaciteUtilisee: (float64(state.DernierNumero) / float64(dto.SequenceMax)) * 100,
	}

	if state.DernierNumero > 0 {
		stats.DernierPTHN = FormatPTHN(annee, state.DernierNumero)
	} else {
		stats.DernierPTHN = "Aucun"
	}

	if state.DernierNumero >= dto.SequenceMax {
		stats.ProchainPTHN = "Capacité épuisée"
	} else {
		stats.ProchainPTHN = FormatPTHN(annee, state.DernierNumero+1)
	}

	return stats, nil
}

// InvalidateStateCache invalide le cache de l'état du compteur après une
// attribution commitée (best effort)
func (s *PTHNAllocatorService) InvalidateStateCache(ctx context.Context, annee int) {
	if s.redis != nil {
		s.redis.Del(ctx, s.redisKeys.SequenceStateCacheKey(annee))
	}
}

// sequenceState lit l'état du compteur, cache Redis d'abord (TTL court)
func (s *PTHNAllocatorService) sequenceState(ctx context.Context, annee int) (*dto.SequenceState, error) {
	if s.redis != nil {
		key := s.redisKeys.SequenceStateCacheKey(annee)
		if payload, err := s.redis.Get(ctx, key); err == nil && payload != "" {
			var state dto.SequenceState
			if err := json.Unmarshal([]byte(payload), &state); err == nil {
				return &state, nil
			}
		}
	}

	state, err := s.store.GetSequenceState(ctx, annee)
	if err != nil {
		return nil, fmt.Errorf("failed to get sequence state: %w", err)
	}

	if state != nil && s.redis != nil {
		if payload, err := json.Marshal(state); err == nil {
			// Best effort, TTL court : l'état change à chaque attribution
			s.redis.Set(ctx, s.redisKeys.SequenceStateCacheKey(annee), string(payload), s.statsTTL)
		}
	}

	return state, nil
}
