package app

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"registre-patient-core/internal/app/config"
	"registre-patient-core/internal/infrastructure/database/postgres"
	"registre-patient-core/internal/infrastructure/database/redis"
	"registre-patient-core/internal/infrastructure/logger"
	"registre-patient-core/internal/shared/middleware/security"
)

func NewRouter(
	cfg *config.Config,
	loggerMw *logger.LoggerMiddleware,
	corsHandler security.CORSHandler,
	pgClient *postgres.Client,
	redisClient *redis.Client,
) *gin.Engine {
	// Set Gin mode based on environment
	configureGinMode(cfg.Environment)

	// Create router without default middleware for custom configuration
	r := gin.New()

	// Middlewares dans l'ordre d'importance
	r.Use(loggerMw.GinLogger())
	r.Use(loggerMw.GinRecovery())
	r.Use(gin.HandlerFunc(corsHandler))

	// Health check routes
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"status": "healthy",
			},
		})
	})

	// Readiness : PostgreSQL est obligatoire (chemin authoritatif),
	// Redis est consultatif et ne bloque jamais la readiness
	r.GET("/ready", func(c *gin.Context) {
		if err := pgClient.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"data": gin.H{
					"status":   "not_ready",
					"postgres": err.Error(),
				},
			})
			return
		}

		redisStatus := "up"
		if err := redisClient.HealthCheck(c.Request.Context()); err != nil {
			redisStatus = "degraded"
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data": gin.H{
				"status": "ready",
				"redis":  redisStatus,
			},
		})
	})

	// Métriques Prometheus
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// configureGinMode configure le mode Gin selon l'environnement
func configureGinMode(environment string) {
	switch environment {
	case "docker":
		gin.SetMode(gin.ReleaseMode)
	case "development":
		gin.SetMode(gin.DebugMode)
	default:
		// Mode debug par défaut pour développement local
		gin.SetMode(gin.DebugMode)
	}
}
