package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	brouillonServices "registre-patient-core/internal/modules/core-services/brouillon/services"
	"registre-patient-core/internal/modules/core-services/pthn/services"
	"registre-patient-core/internal/modules/core-services/pthn/store"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := store.NewMemoryStore()
	registry := services.NewIdentiteRegistryService(st, nil, 0)
	allocator := services.NewPTHNAllocatorService(st, nil, 0)
	enregistrement := services.NewEnregistrementService(st, registry, allocator, nil, nil, 3, 0)
	brouillons := brouillonServices.NewBrouillonService(nil)

	controller := NewEnregistrementController(enregistrement, allocator, brouillons)

	r := gin.New()
	api := r.Group("/api/v1/front-office/enregistrement")
	api.POST("/check-identite", controller.CheckIdentite)
	api.POST("/patients", controller.RegisterPatient)
	api.GET("/sequences/stats", controller.GetSequenceStats)
	api.GET("/brouillons/:id", controller.GetBrouillon)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRegisterPatient_Attribution(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(t, r, "/api/v1/front-office/enregistrement/patients", map[string]interface{}{
		"type_piece":   "cni",
		"numero_piece": "12345678",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, services.FormatPTHN(time.Now().Year(), 1), data["pthn"])
	assert.Equal(t, float64(1), data["numero_sequence"])
}

func TestRegisterPatient_Doublon(t *testing.T) {
	r := newTestRouter(t)
	payload := map[string]interface{}{
		"type_piece":   "cni",
		"numero_piece": "12345678",
	}

	w := postJSON(t, r, "/api/v1/front-office/enregistrement/patients", payload)
	require.Equal(t, http.StatusCreated, w.Code)
	premier := decodeBody(t, w)["data"].(map[string]interface{})

	// Deuxième soumission : 409 avec l'identité existante dans les détails
	w = postJSON(t, r, "/api/v1/front-office/enregistrement/patients", payload)
	require.Equal(t, http.StatusConflict, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "DUPLICATE_IDENTITY", body["code"])
	details := body["details"].(map[string]interface{})
	existante := details["identite_existante"].(map[string]interface{})
	assert.Equal(t, premier["pthn"], existante["pthn"])
}

func TestRegisterPatient_FormatInvalide(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(t, r, "/api/v1/front-office/enregistrement/patients", map[string]interface{}{
		"type_piece":   "cni",
		"numero_piece": "ABC",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_FORMAT", decodeBody(t, w)["code"])
}

func TestRegisterPatient_PayloadIncomplet(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(t, r, "/api/v1/front-office/enregistrement/patients", map[string]interface{}{
		"type_piece": "cni",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST_FORMAT", decodeBody(t, w)["code"])
}

func TestCheckIdentite_Apercu(t *testing.T) {
	r := newTestRouter(t)

	w := postJSON(t, r, "/api/v1/front-office/enregistrement/check-identite", map[string]interface{}{
		"type_piece":   "cni",
		"numero_piece": "12345678",
	})
	require.Equal(t, http.StatusOK, w.Code)

	data := decodeBody(t, w)["data"].(map[string]interface{})
	assert.Equal(t, false, data["doublon"])
	assert.Equal(t, services.FormatPTHN(time.Now().Year(), 1), data["preview_pthn"])
}

func TestGetSequenceStats(t *testing.T) {
	r := newTestRouter(t)
	annee := time.Now().Year()

	w := postJSON(t, r, "/api/v1/front-office/enregistrement/patients", map[string]interface{}{
		"type_piece":   "cni",
		"numero_piece": "12345678",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/front-office/enregistrement/sequences/stats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeBody(t, rec)["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["dernier_numero"])
	assert.Equal(t, services.FormatPTHN(annee, 1), data["dernier_pthn"])
	assert.Equal(t, services.FormatPTHN(annee, 2), data["prochain_pthn"])
}

func TestGetSequenceStats_AnneeInvalide(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/front-office/enregistrement/sequences/stats?annee=abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBrouillon_MongoIndisponible(t *testing.T) {
	r := newTestRouter(t)

	// Sans MongoDB le guichet reste fonctionnel, seuls les brouillons dégradent
	req := httptest.NewRequest(http.MethodGet, "/api/v1/front-office/enregistrement/brouillons/abc", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
