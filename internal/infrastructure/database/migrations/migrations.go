// Package migrations embarque les scripts SQL du registre et les expose au
// gestionnaire de migrations du bootstrap. Les fichiers sont appliqués dans
// l'ordre lexicographique de leur nom.
package migrations

import (
	"embed"
	"io/fs"
	"sort"
)

//go:embed *.sql
var files embed.FS

// Migration représente un script SQL versionné
type Migration struct {
	Name string
	SQL  string
}

// All retourne les migrations embarquées, triées par nom
func All() ([]Migration, error) {
	entries, err := fs.Glob(files, "*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(entries)

	migrations := make([]Migration, 0, len(entries))
	for _, name := range entries {
		content, err := files.ReadFile(name)
		if err != nil {
			return nil, err
		}
		migrations = append(migrations, Migration{Name: name, SQL: string(content)})
	}
	return migrations, nil
}
