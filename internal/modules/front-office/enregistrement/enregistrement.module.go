package enregistrement

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"registre-patient-core/internal/modules/front-office/enregistrement/controllers"
)

// Module regroupe les providers du guichet d'enregistrement (front-office)
var Module = fx.Options(
	// Controllers
	fx.Provide(controllers.NewEnregistrementController),

	// Configuration des routes
	fx.Invoke(RegisterEnregistrementRoutes),
)

// RegisterEnregistrementRoutes configure les routes Gin du guichet d'enregistrement
func RegisterEnregistrementRoutes(
	r *gin.Engine,
	controller *controllers.EnregistrementController,
) {
	api := r.Group("/api/v1/front-office/enregistrement")
	{
		// Vérification consultative (aperçu UI, librement répétable)
		api.POST("/check-identite", controller.CheckIdentite)

		// Enregistrement autoritatif (attribution PTHN atomique)
		api.POST("/patients", controller.RegisterPatient)

		// Statistiques du compteur de séquence
		api.GET("/sequences/stats", controller.GetSequenceStats)

		// Brouillons de formulaire (MongoDB, consultatif)
		api.POST("/brouillons", controller.SaveBrouillon)
		api.PUT("/brouillons/:id", controller.SaveBrouillon)
		api.GET("/brouillons/:id", controller.GetBrouillon)
		api.DELETE("/brouillons/:id", controller.DeleteBrouillon)
	}
}
