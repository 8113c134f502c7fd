package dto

import (
	"errors"
	"fmt"
)

// Codes d'erreur du registre PTHN
const (
	// ErrCodeFormatInvalide : pièce d'identité malformée, rejetée avant tout accès storage
	ErrCodeFormatInvalide = "INVALID_FORMAT"
	// ErrCodeDoublonIdentite : l'identité possède déjà un PTHN (branche métier normale)
	ErrCodeDoublonIdentite = "DUPLICATE_IDENTITY"
	// ErrCodeCapaciteEpuisee : les 9999 numéros de l'année sont consommés, intervention requise
	ErrCodeCapaciteEpuisee = "SEQUENCE_EXHAUSTED"
	// ErrCodeConflitAllocation : conflit de concurrence transitoire, retenter le protocole complet
	ErrCodeConflitAllocation = "ALLOCATION_CONFLICT"
	// ErrCodeTimeoutAllocation : attente de verrou bornée dépassée, retenter le protocole complet
	ErrCodeTimeoutAllocation = "ALLOCATION_TIMEOUT"
)

// RegistreError représente les erreurs du cycle d'attribution PTHN.
// Toute violation de contrainte storage est traduite en une de ces erreurs :
// la couche boundary ne voit jamais une erreur PostgreSQL brute.
type RegistreError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Annee   int    `json:"annee,omitempty"`

	// IdentiteExistante porte l'enregistrement existant pour DUPLICATE_IDENTITY.
	// Nil si le doublon a été détecté par contrainte d'unicité au commit :
	// le caller doit alors relire via le protocole complet.
	IdentiteExistante *Identite `json:"identite_existante,omitempty"`
}

// Error implémente l'interface error
func (e *RegistreError) Error() string {
	if e.Annee > 0 {
		return fmt.Sprintf("%s: %s (annee %d)", e.Code, e.Message, e.Annee)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewRegistreError crée une nouvelle erreur du registre
func NewRegistreError(code, message string) *RegistreError {
	return &RegistreError{Code: code, Message: message}
}

// NewFormatError crée une erreur de format pour un champ de pièce d'identité
func NewFormatError(message string) *RegistreError {
	return &RegistreError{Code: ErrCodeFormatInvalide, Message: message}
}

// NewDoublonError crée l'erreur de doublon portant l'identité existante
func NewDoublonError(existante *Identite) *RegistreError {
	return &RegistreError{
		Code:              ErrCodeDoublonIdentite,
		Message:           "cette pièce d'identité possède déjà un numéro hospitalier",
		IdentiteExistante: existante,
	}
}

// NewCapaciteError crée l'erreur d'épuisement de la capacité annuelle
func NewCapaciteError(annee int) *RegistreError {
	return &RegistreError{
		Code:    ErrCodeCapaciteEpuisee,
		Message: fmt.Sprintf("capacité PTHN épuisée (%d numéros)", SequenceMax),
		Annee:   annee,
	}
}

// NewConflitError crée une erreur de conflit d'allocation transitoire
func NewConflitError(message string) *RegistreError {
	return &RegistreError{Code: ErrCodeConflitAllocation, Message: message}
}

// NewTimeoutError crée une erreur de timeout d'attente de verrou
func NewTimeoutError(message string) *RegistreError {
	return &RegistreError{Code: ErrCodeTimeoutAllocation, Message: message}
}

// CodeOf extrait le code registre d'une erreur, ou "" si ce n'en est pas une
func CodeOf(err error) string {
	var re *RegistreError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// EstRetryable indique si le caller doit retenter le protocole complet.
// Seules les erreurs induites par la concurrence le sont : un doublon, un
// format invalide ou une capacité épuisée ne se résolvent pas en retentant.
func EstRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeConflitAllocation, ErrCodeTimeoutAllocation:
		return true
	}
	return false
}
