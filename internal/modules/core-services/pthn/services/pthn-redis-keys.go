package services

import "fmt"

// PTHNRedisKeys contient les helpers type-safe pour les clés Redis du registre.
// Redis ne porte que le chemin consultatif (caches best-effort) : il ne
// participe jamais à la transaction autoritative.
type PTHNRedisKeys struct{}

// NewPTHNRedisKeys crée une nouvelle instance des helpers Redis
func NewPTHNRedisKeys() *PTHNRedisKeys {
	return &PTHNRedisKeys{}
}

// IdentiteCacheKey génère la clé du cache des identités enregistrées
// Format: registre_patient_identite_cache:{type_piece}:{numero_piece}
func (k *PTHNRedisKeys) IdentiteCacheKey(typePiece, numeroPiece string) string {
	return fmt.Sprintf("registre_patient_identite_cache:%s:%s", typePiece, numeroPiece)
}

// SequenceStateCacheKey génère la clé du cache de l'état du compteur (aperçu, stats)
// Format: registre_patient_pthn_sequence:{annee}
func (k *PTHNRedisKeys) SequenceStateCacheKey(annee int) string {
	return fmt.Sprintf("registre_patient_pthn_sequence:%d", annee)
}
