package dto

import (
	"time"

	"github.com/google/uuid"
)

// Types de pièce d'identité acceptés pour l'attribution d'un PTHN
const (
	TypePieceCNI       = "cni"
	TypePiecePasseport = "passeport"
)

// Identite représente le lien immuable entre une pièce d'identité et un PTHN.
// Une identité est créée exactement une fois, au commit de l'enregistrement,
// et son PTHN ne change jamais.
type Identite struct {
	ID          uuid.UUID `json:"id"`
	TypePiece   string    `json:"type_piece"`
	NumeroPiece string    `json:"numero_piece"`
	PTHN        string    `json:"pthn"`
	CreatedAt   time.Time `json:"created_at"`
}

// IdentiteRequest représente une pièce d'identité telle que soumise par le caller
// (valeur brute, avant normalisation)
type IdentiteRequest struct {
	TypePiece   string `json:"type_piece" binding:"required"`
	NumeroPiece string `json:"numero_piece" binding:"required"`
}

// CheckIdentiteResponse représente le résultat de la vérification consultative
// (non transactionnelle, utilisable librement pour l'aperçu UI)
type CheckIdentiteResponse struct {
	Doublon           bool      `json:"doublon"`
	IdentiteExistante *Identite `json:"identite_existante,omitempty"`
	PreviewPTHN       string    `json:"preview_pthn,omitempty"`
	Source            string    `json:"source"` // "redis" ou "postgres"
	CheckedAt         time.Time `json:"checked_at"`
}

// EnregistrementResult représente le résultat d'un enregistrement autoritatif réussi
type EnregistrementResult struct {
	Identite       *Identite `json:"identite"`
	PTHN           string    `json:"pthn"`
	Annee          int       `json:"annee"`
	NumeroSequence int       `json:"numero_sequence"`
	Tentatives     int       `json:"tentatives"`
	Etats          []string  `json:"etats"`
	DureeMs        int       `json:"duree_ms"`
}

// États traversés par une tentative d'enregistrement
const (
	EtatStarted         = "started"
	EtatCheckedFound    = "checked:found"
	EtatCheckedNotFound = "checked:not_found"
	EtatAllocated       = "allocated"
	EtatCommitted       = "committed"
	EtatRetryRequested  = "retry_requested"
)
