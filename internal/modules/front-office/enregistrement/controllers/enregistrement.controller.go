package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	brouillonDto "registre-patient-core/internal/modules/core-services/brouillon/dto"
	brouillonServices "registre-patient-core/internal/modules/core-services/brouillon/services"
	"registre-patient-core/internal/modules/core-services/pthn/dto"
	"registre-patient-core/internal/modules/core-services/pthn/services"
)

type EnregistrementController struct {
	enregistrement *services.EnregistrementService
	allocator      *services.PTHNAllocatorService
	brouillons     *brouillonServices.BrouillonService
}

func NewEnregistrementController(
	enregistrement *services.EnregistrementService,
	allocator *services.PTHNAllocatorService,
	brouillons *brouillonServices.BrouillonService,
) *EnregistrementController {
	return &EnregistrementController{
		enregistrement: enregistrement,
		allocator:      allocator,
		brouillons:     brouillons,
	}
}

// CheckIdentite - POST /api/v1/front-office/enregistrement/check-identite
// Vérification consultative : répétable librement, jamais créatrice d'état.
// L'aperçu de PTHN retourné est indicatif et peut être périmé dès sa lecture.
func (c *EnregistrementController) CheckIdentite(ctx *gin.Context) {
	var req dto.IdentiteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "Données invalides",
			"code":  "INVALID_REQUEST_FORMAT",
			"details": map[string]interface{}{
				"binding_error": err.Error(),
			},
		})
		return
	}

	result, err := c.enregistrement.CheckIdentite(ctx.Request.Context(), &req)
	if err != nil {
		c.renderRegistreError(ctx, err, "Erreur vérification identité")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// RegisterPatient - POST /api/v1/front-office/enregistrement/patients
// Opération autoritative : attribue le prochain PTHN à condition que
// l'identité n'existe pas déjà, dans une unité de travail atomique unique
func (c *EnregistrementController) RegisterPatient(ctx *gin.Context) {
	var req dto.IdentiteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "Données invalides",
			"code":  "INVALID_REQUEST_FORMAT",
			"details": map[string]interface{}{
				"binding_error": err.Error(),
			},
		})
		return
	}

	result, err := c.enregistrement.RegisterIdentite(ctx.Request.Context(), &req)
	if err != nil {
		c.renderRegistreError(ctx, err, "Erreur enregistrement patient")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    result,
	})
}

// GetSequenceStats - GET /api/v1/front-office/enregistrement/sequences/stats
// Statistiques consultatives du compteur (?annee=YYYY, défaut année courante)
func (c *EnregistrementController) GetSequenceStats(ctx *gin.Context) {
	annee := time.Now().Year()
	if raw := ctx.Query("annee"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 2000 || parsed > 2099 {
			ctx.JSON(http.StatusBadRequest, gin.H{
				"error": "Paramètre annee invalide",
				"code":  "INVALID_REQUEST_FORMAT",
				"details": map[string]interface{}{
					"annee": raw,
				},
			})
			return
		}
		annee = parsed
	}

	stats, err := c.allocator.GetSequenceStats(ctx.Request.Context(), annee)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error": "Erreur récupération statistiques séquence",
			"code":  "SEQUENCE_STATS_ERROR",
			"details": map[string]interface{}{
				"annee":         annee,
				"error_message": err.Error(),
			},
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    stats,
	})
}

// SaveBrouillon - PUT /api/v1/front-office/enregistrement/brouillons/:id
// Sauvegarde un brouillon de formulaire (":id" vide via POST pour créer)
func (c *EnregistrementController) SaveBrouillon(ctx *gin.Context) {
	var req brouillonDto.BrouillonRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error": "Données invalides",
			"code":  "INVALID_REQUEST_FORMAT",
			"details": map[string]interface{}{
				"binding_error": err.Error(),
			},
		})
		return
	}

	brouillon, err := c.brouillons.Save(ctx.Request.Context(), ctx.Param("id"), &req)
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Erreur sauvegarde brouillon",
			"code":  "BROUILLON_ERROR",
			"details": map[string]interface{}{
				"error_message": err.Error(),
			},
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    brouillon,
	})
}

// GetBrouillon - GET /api/v1/front-office/enregistrement/brouillons/:id
func (c *EnregistrementController) GetBrouillon(ctx *gin.Context) {
	brouillon, err := c.brouillons.Get(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Erreur lecture brouillon",
			"code":  "BROUILLON_ERROR",
			"details": map[string]interface{}{
				"error_message": err.Error(),
			},
		})
		return
	}
	if brouillon == nil {
		ctx.JSON(http.StatusNotFound, gin.H{
			"error": "Brouillon introuvable ou expiré",
			"code":  "BROUILLON_NOT_FOUND",
			"details": map[string]interface{}{
				"id": ctx.Param("id"),
			},
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    brouillon,
	})
}

// DeleteBrouillon - DELETE /api/v1/front-office/enregistrement/brouillons/:id
func (c *EnregistrementController) DeleteBrouillon(ctx *gin.Context) {
	if err := c.brouillons.Delete(ctx.Request.Context(), ctx.Param("id")); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Erreur suppression brouillon",
			"code":  "BROUILLON_ERROR",
			"details": map[string]interface{}{
				"error_message": err.Error(),
			},
		})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}

// renderRegistreError traduit la taxonomie d'erreurs du registre en réponses HTTP.
// Les erreurs transitoires remontent ici uniquement après épuisement des retries
// internes : le client peut resoummettre l'opération à l'identique.
func (c *EnregistrementController) renderRegistreError(ctx *gin.Context, err error, fallback string) {
	var re *dto.RegistreError
	if !errors.As(err, &re) {
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error": fallback,
			"code":  "INTERNAL_ERROR",
			"details": map[string]interface{}{
				"error_message": err.Error(),
			},
		})
		return
	}

	var statusCode int
	switch re.Code {
	case dto.ErrCodeFormatInvalide:
		statusCode = http.StatusBadRequest
	case dto.ErrCodeDoublonIdentite:
		statusCode = http.StatusConflict
	case dto.ErrCodeCapaciteEpuisee:
		statusCode = http.StatusUnprocessableEntity
	case dto.ErrCodeConflitAllocation, dto.ErrCodeTimeoutAllocation:
		statusCode = http.StatusServiceUnavailable
	default:
		statusCode = http.StatusInternalServerError
	}

	response := gin.H{
		"error": re.Message,
		"code":  re.Code,
	}
	details := map[string]interface{}{}
	if re.Annee > 0 {
		details["annee"] = re.Annee
	}
	if re.IdentiteExistante != nil {
		details["identite_existante"] = re.IdentiteExistante
	}
	if len(details) > 0 {
		response["details"] = details
	}
	if statusCode == http.StatusServiceUnavailable {
		ctx.Header("Retry-After", "1")
	}

	ctx.JSON(statusCode, response)
}
