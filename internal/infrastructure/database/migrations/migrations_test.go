package migrations

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll_TriEtContenu(t *testing.T) {
	all, err := All()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	names := make([]string, 0, len(all))
	for _, m := range all {
		assert.True(t, strings.HasSuffix(m.Name, ".sql"))
		assert.NotEmpty(t, m.SQL)
		names = append(names, m.Name)
	}

	assert.True(t, sort.StringsAreSorted(names), "les migrations doivent être triées par nom")
	assert.Contains(t, names, "0001_patients_pthn_sequences.sql")
	assert.Contains(t, names, "0002_patients_identite.sql")
}
