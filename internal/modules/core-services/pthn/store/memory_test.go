package store

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registre-patient-core/internal/modules/core-services/pthn/dto"
)

func allouer(t *testing.T, s *MemoryStore, annee int) int {
	t.Helper()
	var numero int
	err := s.RunAtomic(context.Background(), func(tx Atomic) error {
		dernier, err := tx.LockSequence(context.Background(), annee)
		if err != nil {
			return err
		}
		numero = dernier + 1
		return tx.SaveSequence(context.Background(), annee, numero)
	})
	require.NoError(t, err)
	return numero
}

func TestMemoryStore_AllocationSerielle(t *testing.T) {
	s := NewMemoryStore()

	// Les numéros sortent denses, sans trou, à partir de 1
	assert.Equal(t, 1, allouer(t, s, 2025))
	assert.Equal(t, 2, allouer(t, s, 2025))
	assert.Equal(t, 3, allouer(t, s, 2025))

	state, err := s.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 3, state.DernierNumero)
	assert.Equal(t, int64(3), state.NombreGeneres)
}

func TestMemoryStore_AnneesIndependantes(t *testing.T) {
	s := NewMemoryStore()

	assert.Equal(t, 1, allouer(t, s, 2025))
	assert.Equal(t, 2, allouer(t, s, 2025))

	// Le compteur 2026 démarre à 1, celui de 2025 reste intact
	assert.Equal(t, 1, allouer(t, s, 2026))

	state2025, err := s.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 2, state2025.DernierNumero)
}

func TestMemoryStore_AllocationConcurrente(t *testing.T) {
	s := NewMemoryStore()
	const n = 50

	numeros := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			numeros <- allouer(t, s, 2025)
		}()
	}
	wg.Wait()
	close(numeros)

	vus := make(map[int]bool)
	for numero := range numeros {
		assert.False(t, vus[numero], "numéro %d attribué deux fois", numero)
		assert.GreaterOrEqual(t, numero, 1)
		assert.LessOrEqual(t, numero, n)
		vus[numero] = true
	}
	assert.Len(t, vus, n)

	state, err := s.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, n, state.DernierNumero)
	assert.Equal(t, int64(n), state.NombreGeneres)
}

func TestMemoryStore_AbortToutOuRien(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.SeedSequence(context.Background(), 2025))

	identite := &dto.Identite{
		ID:          uuid.New(),
		TypePiece:   dto.TypePieceCNI,
		NumeroPiece: "12345678",
		PTHN:        "PT250001",
	}

	// fn échoue APRÈS l'allocation et l'insertion : rien ne doit être appliqué
	err := s.RunAtomic(context.Background(), func(tx Atomic) error {
		if _, err := tx.LockSequence(context.Background(), 2025); err != nil {
			return err
		}
		if err := tx.SaveSequence(context.Background(), 2025, 1); err != nil {
			return err
		}
		if err := tx.InsertIdentite(context.Background(), identite); err != nil {
			return err
		}
		return fmt.Errorf("échec aval simulé")
	})
	require.Error(t, err)

	state, err := s.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 0, state.DernierNumero)
	assert.Equal(t, int64(0), state.NombreGeneres)

	lu, err := s.GetIdentite(context.Background(), dto.TypePieceCNI, "12345678")
	require.NoError(t, err)
	assert.Nil(t, lu)
}

func TestMemoryStore_InsertIdentiteDoublon(t *testing.T) {
	s := NewMemoryStore()

	inserer := func(numeroPiece, pthn string) error {
		return s.RunAtomic(context.Background(), func(tx Atomic) error {
			return tx.InsertIdentite(context.Background(), &dto.Identite{
				ID:          uuid.New(),
				TypePiece:   dto.TypePieceCNI,
				NumeroPiece: numeroPiece,
				PTHN:        pthn,
			})
		})
	}

	require.NoError(t, inserer("11112222", "PT250001"))

	// Même pièce : doublon d'identité
	err := inserer("11112222", "PT250002")
	assert.Equal(t, dto.ErrCodeDoublonIdentite, dto.CodeOf(err))

	// Même PTHN : conflit d'unicité, retryable
	err = inserer("33334444", "PT250001")
	assert.Equal(t, dto.ErrCodeConflitAllocation, dto.CodeOf(err))
	assert.True(t, dto.EstRetryable(err))
}

func TestMemoryStore_SeedSequenceIdempotent(t *testing.T) {
	s := NewMemoryStore()

	require.NoError(t, s.SeedSequence(context.Background(), 2025))
	assert.Equal(t, 1, allouer(t, s, 2025))

	// Re-seed après allocation : le compteur n'est jamais remis à zéro
	require.NoError(t, s.SeedSequence(context.Background(), 2025))

	state, err := s.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, state.DernierNumero)
}
