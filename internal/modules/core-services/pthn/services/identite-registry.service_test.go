package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registre-patient-core/internal/modules/core-services/pthn/dto"
	"registre-patient-core/internal/modules/core-services/pthn/store"
)

func newTestRegistry(t *testing.T) *IdentiteRegistryService {
	t.Helper()
	return NewIdentiteRegistryService(store.NewMemoryStore(), nil, 0)
}

func TestNormalize_CNI(t *testing.T) {
	registry := newTestRegistry(t)

	cases := []struct {
		brut      string
		canonique string
	}{
		{"12345678", "12345678"},
		{"12 34 56 78", "12345678"},
		{"12-34-56-78", "12345678"},
		{"12.34.56.78", "12345678"},
		{"12/34/56/78", "12345678"},
		{"  123456  ", "123456"},
		{"12345678901234567890", "12345678901234567890"}, // borne haute 20
	}

	for _, c := range cases {
		numero, err := registry.Normalize(dto.TypePieceCNI, c.brut)
		require.NoError(t, err, "normalisation attendue pour %q", c.brut)
		assert.Equal(t, c.canonique, numero)
	}
}

func TestNormalize_CNIInvalide(t *testing.T) {
	registry := newTestRegistry(t)

	cases := []string{
		"",
		"12345",                 // trop court
		"123456789012345678901", // trop long
		"12345A78",              // lettre interdite
		"12_345678",             // séparateur non reconnu
	}

	for _, brut := range cases {
		_, err := registry.Normalize(dto.TypePieceCNI, brut)
		require.Error(t, err, "rejet attendu pour %q", brut)
		assert.Equal(t, dto.ErrCodeFormatInvalide, dto.CodeOf(err))
	}
}

func TestNormalize_Passeport(t *testing.T) {
	registry := newTestRegistry(t)

	// Les passeports sont ramenés en majuscules
	numero, err := registry.Normalize(dto.TypePiecePasseport, "ab 123456")
	require.NoError(t, err)
	assert.Equal(t, "AB123456", numero)

	numero, err = registry.Normalize(dto.TypePiecePasseport, "C-0153-882")
	require.NoError(t, err)
	assert.Equal(t, "C0153882", numero)

	_, err = registry.Normalize(dto.TypePiecePasseport, "AB#12345")
	assert.Equal(t, dto.ErrCodeFormatInvalide, dto.CodeOf(err))

	_, err = registry.Normalize(dto.TypePiecePasseport, "AB1")
	assert.Equal(t, dto.ErrCodeFormatInvalide, dto.CodeOf(err))
}

func TestNormalize_TypePieceInconnu(t *testing.T) {
	registry := newTestRegistry(t)

	for _, typePiece := range []string{"", "permis", "CNI", "Passeport"} {
		_, err := registry.Normalize(typePiece, "12345678")
		require.Error(t, err, "rejet attendu pour le type %q", typePiece)
		assert.Equal(t, dto.ErrCodeFormatInvalide, dto.CodeOf(err))
	}
}

func TestMaskNumero(t *testing.T) {
	assert.Equal(t, "****5678", MaskNumero("12345678"))
	assert.Equal(t, "****", MaskNumero("1234"))
	assert.Equal(t, "****", MaskNumero(""))
	assert.Equal(t, "**********3456", MaskNumero("12345678901234"))
}
