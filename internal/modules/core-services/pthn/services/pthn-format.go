package services

import (
	"fmt"
	"regexp"
	"strconv"

	"registre-patient-core/internal/modules/core-services/pthn/dto"
)

// Format du contrat externe : PT + année sur 2 chiffres + séquence sur 4 chiffres.
// Exemple : PT250043 = année 25, séquence 43. Aucune autre variante n'est valide
// en entrée du parsing aval.
var pthnRegex = regexp.MustCompile(`^PT([0-9]{2})([0-9]{4})$`)

// FormatPTHN formate un PTHN à partir de l'année calendaire complète et du
// numéro de séquence. L'année embarquée est annee mod 100 (limitation YY
// documentée : la désambiguïsation du siècle est à la charge du caller).
func FormatPTHN(annee, numero int) string {
	return fmt.Sprintf("PT%02d%04d", annee%100, numero)
}

// ParsePTHN décompose un PTHN en année (2 chiffres, 0-99) et numéro de
// séquence. Round-trip garanti avec FormatPTHN.
func ParsePTHN(pthn string) (annee int, numero int, err error) {
	matches := pthnRegex.FindStringSubmatch(pthn)
	if matches == nil {
		return 0, 0, dto.NewFormatError(fmt.Sprintf("PTHN invalide: %q", pthn))
	}

	annee, _ = strconv.Atoi(matches[1])
	numero, _ = strconv.Atoi(matches[2])

	if numero < dto.SequenceMin || numero > dto.SequenceMax {
		return 0, 0, dto.NewFormatError(fmt.Sprintf("séquence PTHN hors bornes: %04d", numero))
	}

	return annee, numero, nil
}
