package dto

// Bornes d'une séquence PTHN annuelle
const (
	SequenceMin = 1
	SequenceMax = 9999
)

// SequenceState représente l'état persisté du compteur PTHN d'une année
type SequenceState struct {
	Annee         int   `json:"annee"`
	DernierNumero int   `json:"dernier_numero"`
	NombreGeneres int64 `json:"nombre_generes"`
}

// SequenceStats représente les statistiques d'attribution pour le monitoring
type SequenceStats struct {
	Annee            int     `json:"annee"`
	DernierNumero    int     `json:"dernier_numero"`
	NombreGeneres    int64   `json:"nombre_generes"`
	CapaciteUtilisee float64 `json:"capacite_utilisee_pct"`
	DernierPTHN      string  `json:"dernier_pthn"`
	ProchainPTHN     string  `json:"prochain_pthn"`
}
