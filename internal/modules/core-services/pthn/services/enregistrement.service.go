package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"registre-patient-core/internal/infrastructure/metrics"
	"registre-patient-core/internal/modules/core-services/pthn/dto"
	"registre-patient-core/internal/modules/core-services/pthn/store"
)

// DossierPersister persiste le dossier patient complet (démographie, champs
// cliniques — possédés par le composant dossier, hors registre) dans la même
// unité de travail que l'identité. Le registre ne connaît pas le contenu du
// dossier ; il garantit seulement que dossier et identité committent ensemble.
type DossierPersister interface {
	PersistDossier(ctx context.Context, tx store.Atomic, identite *dto.Identite) error
}

// EnregistrementService orchestre le protocole atomique "réserver le prochain
// PTHN à condition que l'identité n'existe pas déjà" :
//
//	Started -> Checked{found|notFound}
//	  -> (found: Returned)
//	  -> (notFound: Allocated -> Committed | Conflicted -> RetryRequested)
//
// Les conflits transitoires rejouent le protocole COMPLET (jamais la seule
// allocation : l'état de l'identité doit être relu), un nombre borné de fois.
type EnregistrementService struct {
	store     store.Store
	registry  *IdentiteRegistryService
	allocator *PTHNAllocatorService
	dossiers  DossierPersister
	metrics   *metrics.Metrics

	maxTentatives int
	retryBackoff  time.Duration
	now           func() time.Time
}

// NewEnregistrementService crée une nouvelle instance du service.
// dossiers et m peuvent être nil (pas de composant dossier branché, pas de métriques).
func NewEnregistrementService(
	st store.Store,
	registry *IdentiteRegistryService,
	allocator *PTHNAllocatorService,
	dossiers DossierPersister,
	m *metrics.Metrics,
	maxTentatives int,
	retryBackoff time.Duration,
) *EnregistrementService {
	if maxTentatives <= 0 {
		maxTentatives = 3
	}
	return &EnregistrementService{
		store:         st,
		registry:      registry,
		allocator:     allocator,
		dossiers:      dossiers,
		metrics:       m,
		maxTentatives: maxTentatives,
		retryBackoff:  retryBackoff,
		now:           time.Now,
	}
}

// CheckIdentite est la vérification consultative exposée pour l'aperçu UI :
// non transactionnelle, librement répétable, jamais créatrice d'état.
// L'aperçu de PTHN retourné est purement indicatif.
func (s *EnregistrementService) CheckIdentite(
	ctx context.Context,
	req *dto.IdentiteRequest,
) (*dto.CheckIdentiteResponse, error) {
	numero, err := s.registry.Normalize(req.TypePiece, req.NumeroPiece)
	if err != nil {
		return nil, err
	}

	identite, source, err := s.registry.Lookup(ctx, req.TypePiece, numero)
	if err != nil {
		return nil, err
	}

	response := &dto.CheckIdentiteResponse{
		Source:    source,
		CheckedAt: s.now(),
	}

	if identite != nil {
		response.Doublon = true
		response.IdentiteExistante = identite
		return response, nil
	}

	// Aperçu best effort : son absence n'invalide pas le check
	if preview, err := s.allocator.PreviewNext(ctx, s.now().Year()); err == nil {
		response.PreviewPTHN = preview
	}

	return response, nil
}

// RegisterIdentite est l'opération autoritative : normalise, puis exécute le
// protocole atomique avec retries bornés sur les échecs transitoires.
func (s *EnregistrementService) RegisterIdentite(
	ctx context.Context,
	req *dto.IdentiteRequest,
) (*dto.EnregistrementResult, error) {
	startTime := s.now()

	numero, err := s.registry.Normalize(req.TypePiece, req.NumeroPiece)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for tentative := 1; tentative <= s.maxTentatives; tentative++ {
		result, err := s.tenterEnregistrement(ctx, req.TypePiece, numero)
		if err == nil {
			result.Tentatives = tentative
			result.DureeMs = int(time.Since(startTime).Milliseconds())

			// Chemin consultatif : warming du cache, invalidation de l'état du compteur
			s.registry.WarmCache(ctx, result.Identite)
			s.allocator.InvalidateStateCache(ctx, result.Annee)

			if s.metrics != nil {
				s.metrics.ObserveEnregistrement(time.Since(startTime).Seconds())
			}
			fmt.Printf("[REGISTRE] PTHN attribué - %s, piece: %s %s, tentatives: %d, duree: %dms\n",
				result.PTHN, req.TypePiece, MaskNumero(numero), tentative, result.DureeMs)
			return result, nil
		}

		var re *dto.RegistreError
		if errors.As(err, &re) && re.Code == dto.ErrCodeDoublonIdentite {
			if re.IdentiteExistante != nil {
				// Branche métier normale : l'identité possède déjà son PTHN
				if s.metrics != nil {
					s.metrics.IncrementDoublons()
				}
				return nil, re
			}
			// Doublon détecté par contrainte au commit : une unité concurrente
			// a gagné la course. On rejoue le protocole complet pour relire
			// l'identité gagnante.
		} else if !dto.EstRetryable(err) {
			if dto.CodeOf(err) == dto.ErrCodeCapaciteEpuisee && s.metrics != nil {
				s.metrics.IncrementCapaciteEpuisee()
			}
			return nil, err
		}

		lastErr = err
		s.compterConflit(err)
		if s.metrics != nil {
			s.metrics.IncrementRetries()
		}
		fmt.Printf("[REGISTRE] Tentative %d/%d rejouée - piece: %s %s, cause: %s\n",
			tentative, s.maxTentatives, req.TypePiece, MaskNumero(numero), dto.CodeOf(err))

		if s.retryBackoff > 0 && tentative < s.maxTentatives {
			time.Sleep(s.retryBackoff)
		}
	}

	// Retries épuisés : l'erreur transitoire est remontée telle quelle pour
	// que la boundary rende un "veuillez réessayer" exact
	return nil, lastErr
}

// tenterEnregistrement exécute une passe du protocole dans une unité de
// travail sérialisable unique : re-vérification autoritative de l'identité,
// allocation verrouillée, insertion, dossier aval — commit tout-ou-rien.
func (s *EnregistrementService) tenterEnregistrement(
	ctx context.Context,
	typePiece, numeroPiece string,
) (*dto.EnregistrementResult, error) {
	etats := []string{dto.EtatStarted}
	annee := s.now().Year()

	var identite *dto.Identite
	var numeroSequence int

	err := s.store.RunAtomic(ctx, func(tx store.Atomic) error {
		// Re-vérification AUTORITATIVE, dans l'unité : un check consultatif
		// antérieur (aperçu UI) n'est jamais cru
		existante, err := tx.GetIdentite(ctx, typePiece, numeroPiece)
		if err != nil {
			return err
		}
		if existante != nil {
			etats = append(etats, dto.EtatCheckedFound)
			// Abort de l'unité : rien n'a été alloué
			return dto.NewDoublonError(existante)
		}
		etats = append(etats, dto.EtatCheckedNotFound)

		numeroSequence, err = s.allocator.AllocateNext(ctx, tx, annee)
		if err != nil {
			return err
		}
		etats = append(etats, dto.EtatAllocated)

		identite = &dto.Identite{
			ID:          uuid.New(),
			TypePiece:   typePiece,
			NumeroPiece: numeroPiece,
			PTHN:        FormatPTHN(annee, numeroSequence),
		}
		if err := tx.InsertIdentite(ctx, identite); err != nil {
			return err
		}

		// Le dossier patient commit avec l'identité ou pas du tout
		if s.dossiers != nil {
			if err := s.dossiers.PersistDossier(ctx, tx, identite); err != nil {
				return fmt.Errorf("failed to persist dossier: %w", err)
			}
		}
		return nil
	})

	if err != nil {
		if dto.EstRetryable(err) || dto.CodeOf(err) == dto.ErrCodeDoublonIdentite {
			etats = append(etats, dto.EtatRetryRequested)
		}
		return nil, err
	}

	etats = append(etats, dto.EtatCommitted)
	return &dto.EnregistrementResult{
		Identite:       identite,
		PTHN:           identite.PTHN,
		Annee:          annee,
		NumeroSequence: numeroSequence,
		Etats:          etats,
	}, nil
}

func (s *EnregistrementService) compterConflit(err error) {
	if s.metrics == nil {
		return
	}
	switch dto.CodeOf(err) {
	case dto.ErrCodeConflitAllocation:
		s.metrics.IncrementConflits()
	case dto.ErrCodeTimeoutAllocation:
		s.metrics.IncrementTimeouts()
	}
}
