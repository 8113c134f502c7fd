package dto

import "time"

// Brouillon est un formulaire d'enregistrement en cours de saisie à l'accueil.
// Stocké dans MongoDB car le contenu du formulaire est libre : il n'engage
// jamais le registre tant que l'enregistrement n'est pas soumis.
type Brouillon struct {
	ID          string                 `bson:"_id" json:"id"`
	TypePiece   string                 `bson:"type_piece" json:"type_piece"`
	NumeroPiece string                 `bson:"numero_piece" json:"numero_piece"`
	Formulaire  map[string]interface{} `bson:"formulaire" json:"formulaire"`
	PreviewPTHN string                 `bson:"preview_pthn,omitempty" json:"preview_pthn,omitempty"`
	CreatedAt   time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time              `bson:"updated_at" json:"updated_at"`
	ExpiresAt   time.Time              `bson:"expires_at" json:"expires_at"`
}

// BrouillonRequest payload de sauvegarde d'un brouillon
type BrouillonRequest struct {
	TypePiece   string                 `json:"type_piece" binding:"required"`
	NumeroPiece string                 `json:"numero_piece" binding:"required"`
	Formulaire  map[string]interface{} `json:"formulaire" binding:"required"`
	PreviewPTHN string                 `json:"preview_pthn"`
}
