package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registre-patient-core/internal/modules/core-services/pthn/dto"
	"registre-patient-core/internal/modules/core-services/pthn/store"
)

func newTestService(t *testing.T, st store.Store) *EnregistrementService {
	t.Helper()
	registry := NewIdentiteRegistryService(st, nil, 0)
	allocator := NewPTHNAllocatorService(st, nil, 0)
	service := NewEnregistrementService(st, registry, allocator, nil, nil, 3, 0)
	service.now = func() time.Time {
		return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	}
	return service
}

func cniRequest(numero string) *dto.IdentiteRequest {
	return &dto.IdentiteRequest{TypePiece: dto.TypePieceCNI, NumeroPiece: numero}
}

func TestRegisterIdentite_AttributionSequentielle(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)

	premier, err := service.RegisterIdentite(context.Background(), cniRequest("10000001"))
	require.NoError(t, err)
	assert.Equal(t, "PT250001", premier.PTHN)
	assert.Equal(t, 2025, premier.Annee)
	assert.Equal(t, 1, premier.NumeroSequence)
	assert.Equal(t, 1, premier.Tentatives)
	assert.Contains(t, premier.Etats, dto.EtatCheckedNotFound)
	assert.Contains(t, premier.Etats, dto.EtatCommitted)

	second, err := service.RegisterIdentite(context.Background(), cniRequest("10000002"))
	require.NoError(t, err)
	assert.Equal(t, "PT250002", second.PTHN)
}

func TestRegisterIdentite_DoublonRetourneExistante(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)

	premier, err := service.RegisterIdentite(context.Background(), cniRequest("10000001"))
	require.NoError(t, err)

	_, err = service.RegisterIdentite(context.Background(), cniRequest("10000001"))
	require.Error(t, err)

	var re *dto.RegistreError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, dto.ErrCodeDoublonIdentite, re.Code)
	require.NotNil(t, re.IdentiteExistante)
	assert.Equal(t, premier.PTHN, re.IdentiteExistante.PTHN)

	// Un doublon ne consomme jamais de numéro
	state, err := st.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, state.DernierNumero)
}

func TestRegisterIdentite_NormalisationPartagee(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)

	// La même pièce saisie avec séparateurs doit converger vers la même
	// forme canonique et être vue comme un doublon
	_, err := service.RegisterIdentite(context.Background(), cniRequest("12345678"))
	require.NoError(t, err)

	_, err = service.RegisterIdentite(context.Background(), cniRequest("12 34-56.78"))
	assert.Equal(t, dto.ErrCodeDoublonIdentite, dto.CodeOf(err))
}

func TestRegisterIdentite_FormatInvalideAvantStorage(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)

	cases := []*dto.IdentiteRequest{
		cniRequest("ABC123"),   // CNI non numérique
		cniRequest("12345"),    // CNI trop courte
		{TypePiece: dto.TypePiecePasseport, NumeroPiece: "AB1"},      // passeport trop court
		{TypePiece: dto.TypePiecePasseport, NumeroPiece: "AB-12#34"}, // caractère interdit
		{TypePiece: "permis", NumeroPiece: "12345678"},               // type inconnu
	}

	for _, req := range cases {
		_, err := service.RegisterIdentite(context.Background(), req)
		assert.Equal(t, dto.ErrCodeFormatInvalide, dto.CodeOf(err),
			"format attendu invalide pour %q %q", req.TypePiece, req.NumeroPiece)
	}

	// Rejet avant tout accès storage : aucun compteur créé
	state, err := st.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestRegisterIdentite_PasseportNormaliseEnMajuscules(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)

	result, err := service.RegisterIdentite(context.Background(), &dto.IdentiteRequest{
		TypePiece:   dto.TypePiecePasseport,
		NumeroPiece: "ab 123456",
	})
	require.NoError(t, err)
	assert.Equal(t, "AB123456", result.Identite.NumeroPiece)
}

func TestRegisterIdentite_ConcurrenceMemePiece(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)
	const n = 10

	type issue struct {
		result *dto.EnregistrementResult
		err    error
	}
	issues := make(chan issue, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := service.RegisterIdentite(context.Background(), cniRequest("55556666"))
			issues <- issue{result, err}
		}()
	}
	wg.Wait()
	close(issues)

	var succes, doublons int
	var pthn string
	for is := range issues {
		if is.err == nil {
			succes++
			pthn = is.result.PTHN
			continue
		}
		require.Equal(t, dto.ErrCodeDoublonIdentite, dto.CodeOf(is.err))
		var re *dto.RegistreError
		require.ErrorAs(t, is.err, &re)
		require.NotNil(t, re.IdentiteExistante)
		assert.Equal(t, "PT250001", re.IdentiteExistante.PTHN)
		doublons++
	}

	// Exactement un gagnant, tous les autres reçoivent l'identité gagnante
	assert.Equal(t, 1, succes)
	assert.Equal(t, n-1, doublons)
	assert.Equal(t, "PT250001", pthn)

	state, err := st.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, state.DernierNumero)
}

func TestRegisterIdentite_ConcurrencePiecesDistinctes(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)
	const n = 20

	pthns := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			numero := "2000" + string(rune('0'+i/10)) + string(rune('0'+i%10)) + "99"
			result, err := service.RegisterIdentite(context.Background(), cniRequest(numero))
			if err != nil {
				pthns <- ""
				return
			}
			pthns <- result.PTHN
		}(i)
	}
	wg.Wait()
	close(pthns)

	vus := make(map[string]bool)
	for pthn := range pthns {
		require.NotEmpty(t, pthn)
		assert.False(t, vus[pthn], "PTHN %s attribué deux fois", pthn)
		vus[pthn] = true
	}
	assert.Len(t, vus, n)

	state, err := st.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, n, state.DernierNumero)
	assert.Equal(t, int64(n), state.NombreGeneres)
}

func TestRegisterIdentite_CapaciteEpuisee(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)

	// Amener le compteur à la borne haute
	err := st.RunAtomic(context.Background(), func(tx store.Atomic) error {
		if _, err := tx.LockSequence(context.Background(), 2025); err != nil {
			return err
		}
		return tx.SaveSequence(context.Background(), 2025, dto.SequenceMax)
	})
	require.NoError(t, err)

	_, err = service.RegisterIdentite(context.Background(), cniRequest("77778888"))
	require.Error(t, err)

	var re *dto.RegistreError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, dto.ErrCodeCapaciteEpuisee, re.Code)
	assert.Equal(t, 2025, re.Annee)
	assert.False(t, dto.EstRetryable(err))

	// L'échec ne déborde jamais le compteur
	state, err := st.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, dto.SequenceMax, state.DernierNumero)
}

func TestRegisterIdentite_BasculeAnnee(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)

	avant, err := service.RegisterIdentite(context.Background(), cniRequest("10000001"))
	require.NoError(t, err)
	assert.Equal(t, "PT250001", avant.PTHN)

	// Passage au 1er janvier : le compteur repart à 1 sous le nouveau préfixe
	service.now = func() time.Time {
		return time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
	}

	apres, err := service.RegisterIdentite(context.Background(), cniRequest("10000002"))
	require.NoError(t, err)
	assert.Equal(t, "PT260001", apres.PTHN)
	assert.Equal(t, 2026, apres.Annee)

	// Le compteur 2025 n'est pas touché par la bascule
	state2025, err := st.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 1, state2025.DernierNumero)
}

// conflitStore injecte des conflits transitoires pendant les premières unités
// de travail pour exercer la boucle de retry
type conflitStore struct {
	store.Store
	mu     sync.Mutex
	echecs int
	appels int
}

func (s *conflitStore) RunAtomic(ctx context.Context, fn func(tx store.Atomic) error) error {
	s.mu.Lock()
	s.appels++
	rejouer := s.appels <= s.echecs
	s.mu.Unlock()

	if rejouer {
		return dto.NewConflitError("conflit de sérialisation simulé")
	}
	return s.Store.RunAtomic(ctx, fn)
}

func TestRegisterIdentite_ConflitTransitoireRejoue(t *testing.T) {
	st := &conflitStore{Store: store.NewMemoryStore(), echecs: 2}
	service := newTestService(t, st)

	result, err := service.RegisterIdentite(context.Background(), cniRequest("10000001"))
	require.NoError(t, err)
	assert.Equal(t, "PT250001", result.PTHN)
	assert.Equal(t, 3, result.Tentatives)
}

func TestRegisterIdentite_RetriesBornes(t *testing.T) {
	st := &conflitStore{Store: store.NewMemoryStore(), echecs: 100}
	service := newTestService(t, st)

	_, err := service.RegisterIdentite(context.Background(), cniRequest("10000001"))
	require.Error(t, err)
	assert.Equal(t, dto.ErrCodeConflitAllocation, dto.CodeOf(err))
	assert.True(t, dto.EstRetryable(err))

	// maxTentatives passes complètes, pas une de plus
	assert.Equal(t, 3, st.appels)
}

// doublonCommitStore simule la détection d'un doublon par contrainte
// d'unicité au commit (perdant d'une course) : le protocole doit rejouer
// et relire l'identité gagnante
type doublonCommitStore struct {
	store.Store
	mu     sync.Mutex
	appels int
}

func (s *doublonCommitStore) RunAtomic(ctx context.Context, fn func(tx store.Atomic) error) error {
	s.mu.Lock()
	s.appels++
	premier := s.appels == 1
	s.mu.Unlock()

	if premier {
		return dto.NewDoublonError(nil)
	}
	return s.Store.RunAtomic(ctx, fn)
}

func TestRegisterIdentite_DoublonAuCommitRelitLeGagnant(t *testing.T) {
	memoire := store.NewMemoryStore()
	st := &doublonCommitStore{Store: memoire}
	service := newTestService(t, st)

	// L'identité gagnante existe déjà côté storage
	gagnant := newTestService(t, memoire)
	result, err := gagnant.RegisterIdentite(context.Background(), cniRequest("10000001"))
	require.NoError(t, err)

	_, err = service.RegisterIdentite(context.Background(), cniRequest("10000001"))
	require.Error(t, err)

	var re *dto.RegistreError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, dto.ErrCodeDoublonIdentite, re.Code)
	require.NotNil(t, re.IdentiteExistante, "le retry doit relire l'identité gagnante")
	assert.Equal(t, result.PTHN, re.IdentiteExistante.PTHN)
	assert.Equal(t, 2, st.appels)
}

func TestCheckIdentite_Consultatif(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)

	// Identité inconnue : pas de doublon, aperçu du prochain PTHN
	check, err := service.CheckIdentite(context.Background(), cniRequest("10000001"))
	require.NoError(t, err)
	assert.False(t, check.Doublon)
	assert.Equal(t, "PT250001", check.PreviewPTHN)
	assert.Equal(t, "postgres", check.Source)

	// Un check ne réserve rien : répétable à l'infini
	for i := 0; i < 3; i++ {
		again, err := service.CheckIdentite(context.Background(), cniRequest("10000001"))
		require.NoError(t, err)
		assert.Equal(t, "PT250001", again.PreviewPTHN)
	}
	state, err := st.GetSequenceState(context.Background(), 2025)
	require.NoError(t, err)
	assert.Nil(t, state)

	// Après enregistrement : doublon avec l'identité existante
	result, err := service.RegisterIdentite(context.Background(), cniRequest("10000001"))
	require.NoError(t, err)

	check, err = service.CheckIdentite(context.Background(), cniRequest("10000001"))
	require.NoError(t, err)
	assert.True(t, check.Doublon)
	require.NotNil(t, check.IdentiteExistante)
	assert.Equal(t, result.PTHN, check.IdentiteExistante.PTHN)
}

func TestCheckIdentite_ApercuNonContraignant(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)

	// A consulte son aperçu
	checkA, err := service.CheckIdentite(context.Background(), cniRequest("10000001"))
	require.NoError(t, err)
	assert.Equal(t, "PT250001", checkA.PreviewPTHN)

	// B enregistre entre-temps et consomme le numéro aperçu par A
	resultB, err := service.RegisterIdentite(context.Background(), cniRequest("20000002"))
	require.NoError(t, err)
	assert.Equal(t, "PT250001", resultB.PTHN)

	// A obtient le numéro suivant : l'aperçu n'était qu'indicatif
	resultA, err := service.RegisterIdentite(context.Background(), cniRequest("10000001"))
	require.NoError(t, err)
	assert.Equal(t, "PT250002", resultA.PTHN)
}

func TestCheckIdentite_CapaciteEpuiseeSansPreview(t *testing.T) {
	st := store.NewMemoryStore()
	service := newTestService(t, st)

	err := st.RunAtomic(context.Background(), func(tx store.Atomic) error {
		if _, err := tx.LockSequence(context.Background(), 2025); err != nil {
			return err
		}
		return tx.SaveSequence(context.Background(), 2025, dto.SequenceMax)
	})
	require.NoError(t, err)

	// Le check reste utilisable, il n'a simplement plus d'aperçu à offrir
	check, err := service.CheckIdentite(context.Background(), cniRequest("10000001"))
	require.NoError(t, err)
	assert.False(t, check.Doublon)
	assert.Empty(t, check.PreviewPTHN)
}
