package store

import (
	"context"
	"sync"
	"time"

	"registre-patient-core/internal/modules/core-services/pthn/dto"
)

// MemoryStore est l'implémentation en mémoire du registre, pour les tests et
// le développement sans base. Sémantique identique au store PostgreSQL :
// unités de travail sérialisées, écritures tout-ou-rien, mêmes erreurs.
type MemoryStore struct {
	mu        sync.Mutex
	sequences map[int]*dto.SequenceState
	identites map[string]*dto.Identite // clé type_piece|numero_piece
	pthns     map[string]struct{}
}

// NewMemoryStore crée un registre mémoire vide
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sequences: make(map[int]*dto.SequenceState),
		identites: make(map[string]*dto.Identite),
		pthns:     make(map[string]struct{}),
	}
}

func pieceKey(typePiece, numeroPiece string) string {
	return typePiece + "|" + numeroPiece
}

func (s *MemoryStore) GetIdentite(ctx context.Context, typePiece, numeroPiece string) (*dto.Identite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if identite, ok := s.identites[pieceKey(typePiece, numeroPiece)]; ok {
		copie := *identite
		return &copie, nil
	}
	return nil, nil
}

func (s *MemoryStore) GetSequenceState(ctx context.Context, annee int) (*dto.SequenceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.sequences[annee]; ok {
		copie := *state
		return &copie, nil
	}
	return nil, nil
}

func (s *MemoryStore) SeedSequence(ctx context.Context, annee int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sequences[annee]; !ok {
		s.sequences[annee] = &dto.SequenceState{Annee: annee}
	}
	return nil
}

// RunAtomic sérialise les unités de travail derrière le mutex (équivalent du
// verrou de ligne PostgreSQL) et met en scène les écritures : elles ne sont
// appliquées qu'au retour sans erreur de fn.
func (s *MemoryStore) RunAtomic(ctx context.Context, fn func(tx Atomic) error) error {
	if err := ctx.Err(); err != nil {
		return dto.NewTimeoutError("unité de travail interrompue par timeout")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryAtomic{
		store:        s,
		seqPending:   make(map[int]int),
		seqCreated:   make(map[int]struct{}),
		newIdentites: nil,
	}

	if err := fn(tx); err != nil {
		// Abort : aucune écriture mise en scène n'est appliquée
		return err
	}

	tx.apply()
	return nil
}

// memoryAtomic accumule les écritures d'une unité et les applique au commit
type memoryAtomic struct {
	store        *MemoryStore
	seqPending   map[int]int // annee -> dernier_numero mis en scène
	seqCreated   map[int]struct{}
	newIdentites []*dto.Identite
}

func (a *memoryAtomic) GetIdentite(ctx context.Context, typePiece, numeroPiece string) (*dto.Identite, error) {
	key := pieceKey(typePiece, numeroPiece)
	for _, identite := range a.newIdentites {
		if pieceKey(identite.TypePiece, identite.NumeroPiece) == key {
			copie := *identite
			return &copie, nil
		}
	}
	if identite, ok := a.store.identites[key]; ok {
		copie := *identite
		return &copie, nil
	}
	return nil, nil
}

func (a *memoryAtomic) LockSequence(ctx context.Context, annee int) (int, error) {
	if numero, ok := a.seqPending[annee]; ok {
		return numero, nil
	}
	if state, ok := a.store.sequences[annee]; ok {
		return state.DernierNumero, nil
	}
	// Création paresseuse à 0, visible seulement dans cette unité
	a.seqCreated[annee] = struct{}{}
	return 0, nil
}

func (a *memoryAtomic) SaveSequence(ctx context.Context, annee, numero int) error {
	a.seqPending[annee] = numero
	return nil
}

func (a *memoryAtomic) InsertIdentite(ctx context.Context, identite *dto.Identite) error {
	key := pieceKey(identite.TypePiece, identite.NumeroPiece)
	if _, ok := a.store.identites[key]; ok {
		return dto.NewDoublonError(nil)
	}
	if _, ok := a.store.pthns[identite.PTHN]; ok {
		return dto.NewConflitError("conflit d'unicité sur le PTHN attribué")
	}
	copie := *identite
	if copie.CreatedAt.IsZero() {
		copie.CreatedAt = time.Now()
	}
	identite.CreatedAt = copie.CreatedAt
	a.newIdentites = append(a.newIdentites, &copie)
	return nil
}

func (a *memoryAtomic) apply() {
	for annee := range a.seqCreated {
		if _, ok := a.store.sequences[annee]; !ok {
			a.store.sequences[annee] = &dto.SequenceState{Annee: annee}
		}
	}
	for annee, numero := range a.seqPending {
		state, ok := a.store.sequences[annee]
		if !ok {
			state = &dto.SequenceState{Annee: annee}
			a.store.sequences[annee] = state
		}
		state.DernierNumero = numero
		state.NombreGeneres++
	}
	for _, identite := range a.newIdentites {
		a.store.identites[pieceKey(identite.TypePiece, identite.NumeroPiece)] = identite
		a.store.pthns[identite.PTHN] = struct{}{}
	}
}
