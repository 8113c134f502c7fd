package security

import (
	"regexp"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"registre-patient-core/internal/app/config"
)

// CORSHandler type spécifique pour Fx
type CORSHandler gin.HandlerFunc

// CORSMiddleware configure les règles CORS pour les postes d'accueil
func CORSMiddleware(appConfig *config.Config) CORSHandler {
	corsConfig := appConfig.GetCORS()

	// Postes d'accueil locaux et déploiements intranet clinique
	allowedPattern := regexp.MustCompile(
		`^https?://([a-zA-Z0-9-]+\.)?(registre\.clinique\.local|localhost:(3000|3001|8080))$`,
	)

	return CORSHandler(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if allowedPattern.MatchString(origin) {
				return true
			}

			// Origins explicitement configurés dans l'environnement
			for _, allowedOrigin := range corsConfig.AllowedOrigins {
				if origin == allowedOrigin {
					return true
				}
			}

			return false
		},

		AllowMethods: corsConfig.AllowedMethods,

		// Headers autorisés (inclut le header de corrélation requête)
		AllowHeaders: append(corsConfig.AllowedHeaders,
			"X-Request-Id"),

		ExposeHeaders: []string{
			"Content-Length",
			"X-Request-Id",
			"Retry-After",
		},

		AllowCredentials: corsConfig.AllowCredentials,

		// Cache de la réponse preflight
		MaxAge: time.Duration(corsConfig.MaxAge) * time.Second,
	}))
}
