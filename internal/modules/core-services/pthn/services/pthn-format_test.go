package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registre-patient-core/internal/modules/core-services/pthn/dto"
)

func TestFormatPTHN(t *testing.T) {
	assert.Equal(t, "PT250043", FormatPTHN(2025, 43))
	assert.Equal(t, "PT250001", FormatPTHN(2025, 1))
	assert.Equal(t, "PT259999", FormatPTHN(2025, 9999))
	assert.Equal(t, "PT260001", FormatPTHN(2026, 1))

	// L'année embarquée est l'année calendaire mod 100
	assert.Equal(t, "PT000001", FormatPTHN(2100, 1))
}

func TestParsePTHN_RoundTrip(t *testing.T) {
	annee, numero, err := ParsePTHN("PT250043")
	require.NoError(t, err)
	assert.Equal(t, 25, annee)
	assert.Equal(t, 43, numero)
	assert.Equal(t, "PT250043", FormatPTHN(2000+annee, numero))

	annee, numero, err = ParsePTHN(FormatPTHN(2026, 9999))
	require.NoError(t, err)
	assert.Equal(t, 26, annee)
	assert.Equal(t, 9999, numero)
}

func TestParsePTHN_Invalide(t *testing.T) {
	cases := []string{
		"",
		"PT25004",    // trop court
		"PT2500431",  // trop long
		"pt250043",   // préfixe minuscule
		"XX250043",   // mauvais préfixe
		"PT25A043",   // non numérique
		"PT250043 ",  // espace parasite
		" PT250043",  // espace parasite
		"PT250000",   // séquence hors bornes (min 0001)
	}

	for _, pthn := range cases {
		_, _, err := ParsePTHN(pthn)
		require.Error(t, err, "attendu une erreur pour %q", pthn)
		assert.Equal(t, dto.ErrCodeFormatInvalide, dto.CodeOf(err), "code attendu pour %q", pthn)
	}
}
