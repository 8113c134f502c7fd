package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"registre-patient-core/internal/infrastructure/database/mongodb"
	"registre-patient-core/internal/infrastructure/database/postgres"
	"registre-patient-core/internal/infrastructure/database/redis"

	"github.com/joho/godotenv"
)

// Uniquement variables d'environnement

// Config structure unifiée
type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	MongoDB     MongoConfig
	Registre    RegistreConfig
	Logging     LoggingConfig
	CORS        CORSConfig
}

// ServerConfig configuration serveur HTTP
type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"`
	Port         int           `env:"SERVER_PORT"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT"`
}

// DatabaseConfig configuration PostgreSQL
type DatabaseConfig struct {
	Host           string        `env:"DB_HOST"`
	Port           int           `env:"DB_PORT"`
	Database       string        `env:"DB_NAME"`
	Username       string        `env:"DB_USERNAME"`
	Password       string        `env:"DB_PASSWORD"`
	MaxConnections int           `env:"DB_MAX_CONNECTIONS"`
	QueryTimeout   time.Duration `env:"DB_QUERY_TIMEOUT"`
	SSLMode        string        `env:"DB_SSL_MODE"`
}

// RedisConfig configuration Redis
type RedisConfig struct {
	Host        string        `env:"REDIS_HOST"`
	Port        int           `env:"REDIS_PORT"`
	Password    string        `env:"REDIS_PASSWORD"`
	Database    int           `env:"REDIS_DATABASE"`
	MaxRetries  int           `env:"REDIS_MAX_RETRIES"`
	PoolSize    int           `env:"REDIS_POOL_SIZE"`
	PoolTimeout time.Duration `env:"REDIS_POOL_TIMEOUT"`
}

// MongoConfig configuration MongoDB
type MongoConfig struct {
	URI            string        `env:"MONGODB_URI"`
	Database       string        `env:"MONGODB_DATABASE"`
	ConnectTimeout time.Duration `env:"MONGODB_CONNECT_TIMEOUT"`
	MaxPoolSize    int           `env:"MONGODB_MAX_POOL_SIZE"`
}

// RegistreConfig paramètres d'attribution des PTHN
type RegistreConfig struct {
	LockTimeout       time.Duration `env:"REGISTRE_LOCK_TIMEOUT_MS"`
	MaxTentatives     int           `env:"REGISTRE_MAX_TENTATIVES"`
	RetryBackoff      time.Duration `env:"REGISTRE_RETRY_BACKOFF_MS"`
	CacheIdentiteTTL  time.Duration `env:"REGISTRE_CACHE_IDENTITE_TTL"`
	CacheSequenceTTL  time.Duration `env:"REGISTRE_CACHE_SEQUENCE_TTL"`
	SeedAnneeCourante bool          `env:"REGISTRE_SEED_ANNEE_COURANTE"`
}

// LoggingConfig configuration logging
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL"`
}

// CORSConfig configuration CORS
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"`
	MaxAge           int      `env:"CORS_MAX_AGE"`
}

// NewConfig charge la configuration depuis les variables d'environnement uniquement
func NewConfig() (*Config, error) {
	// Charger le fichier .env (optionnel)
	if err := godotenv.Load(".env"); err != nil {
		fmt.Printf("[CONFIG] Warning: Fichier .env non trouvé: %v\n", err)
	}

	config := &Config{}

	// Déterminer environnement
	config.Environment = getEnv("APP_ENV", "development")

	// Charger configuration serveur
	config.Server = ServerConfig{
		Host:         getEnv("SERVER_HOST", "localhost"),
		Port:         getEnvInt("SERVER_PORT", 4000),
		ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 30) * time.Second,
		WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30) * time.Second,
	}

	// Charger configuration database
	config.Database = DatabaseConfig{
		Host:           getEnv("DB_HOST", "localhost"),
		Port:           getEnvInt("DB_PORT", 5432),
		Database:       getEnv("DB_NAME", "registre_patient"),
		Username:       getEnv("DB_USERNAME", "postgres"),
		Password:       getEnv("DB_PASSWORD", ""),
		MaxConnections: getEnvInt("DB_MAX_CONNECTIONS", 25),
		QueryTimeout:   getEnvDuration("DB_QUERY_TIMEOUT", 30) * time.Second,
		SSLMode:        getEnv("DB_SSL_MODE", "disable"),
	}

	// Charger configuration Redis
	config.Redis = RedisConfig{
		Host:        getEnv("REDIS_HOST", "localhost"),
		Port:        getEnvInt("REDIS_PORT", 6379),
		Password:    getEnv("REDIS_PASSWORD", ""),
		Database:    getEnvInt("REDIS_DATABASE", 0),
		MaxRetries:  getEnvInt("REDIS_MAX_RETRIES", 3),
		PoolSize:    getEnvInt("REDIS_POOL_SIZE", 10),
		PoolTimeout: getEnvDuration("REDIS_POOL_TIMEOUT", 30) * time.Second,
	}

	// Charger configuration MongoDB
	defaultMongoURI := ""
	if config.Environment == "development" {
		defaultMongoURI = "mongodb://localhost:27017"
	}

	config.MongoDB = MongoConfig{
		URI:            getEnv("MONGODB_URI", defaultMongoURI),
		Database:       getEnv("MONGODB_DATABASE", "registre_patient_dynamic"),
		ConnectTimeout: getEnvDuration("MONGODB_CONNECT_TIMEOUT", 10) * time.Second,
		MaxPoolSize:    getEnvInt("MONGODB_MAX_POOL_SIZE", 100),
	}

	// Charger configuration registre (attribution PTHN)
	config.Registre = RegistreConfig{
		LockTimeout:       time.Duration(getEnvInt("REGISTRE_LOCK_TIMEOUT_MS", 3000)) * time.Millisecond,
		MaxTentatives:     getEnvInt("REGISTRE_MAX_TENTATIVES", 3),
		RetryBackoff:      time.Duration(getEnvInt("REGISTRE_RETRY_BACKOFF_MS", 25)) * time.Millisecond,
		CacheIdentiteTTL:  getEnvDuration("REGISTRE_CACHE_IDENTITE_TTL", 300) * time.Second,
		CacheSequenceTTL:  getEnvDuration("REGISTRE_CACHE_SEQUENCE_TTL", 5) * time.Second,
		SeedAnneeCourante: getEnvBool("REGISTRE_SEED_ANNEE_COURANTE", true),
	}

	// Charger configuration logging
	config.Logging = LoggingConfig{
		Level: getEnv("LOG_LEVEL", "debug"),
	}

	// Charger configuration CORS
	config.CORS = CORSConfig{
		AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
		MaxAge:           getEnvInt("CORS_MAX_AGE", 3600),
	}

	// Validation configuration critique
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("validation configuration échouée: %w", err)
	}

	fmt.Printf("[CONFIG] ✅ Configuration chargée pour environnement: %s\n", config.Environment)
	return config, nil
}

// Getters pour compatibilité avec l'ancien code
func (c *Config) GetDatabase() DatabaseConfig { return c.Database }
func (c *Config) GetRedis() RedisConfig       { return c.Redis }
func (c *Config) GetMongoDB() MongoConfig     { return c.MongoDB }
func (c *Config) GetRegistre() RegistreConfig { return c.Registre }
func (c *Config) GetServer() ServerConfig     { return c.Server }
func (c *Config) GetLogging() LoggingConfig   { return c.Logging }
func (c *Config) GetCORS() CORSConfig         { return c.CORS }

// Convertisseurs vers configurations infrastructure
func NewPostgresConfig(config *Config) *postgres.DatabaseConfig {
	return &postgres.DatabaseConfig{
		Host:           config.Database.Host,
		Port:           config.Database.Port,
		Database:       config.Database.Database,
		Username:       config.Database.Username,
		Password:       config.Database.Password,
		SSLMode:        config.Database.SSLMode,
		MaxConnections: config.Database.MaxConnections,
		QueryTimeout:   config.Database.QueryTimeout,
	}
}

func NewRedisConfig(config *Config) *redis.RedisConfig {
	return &redis.RedisConfig{
		Host:        config.Redis.Host,
		Port:        config.Redis.Port,
		Password:    config.Redis.Password,
		Database:    config.Redis.Database,
		MaxRetries:  config.Redis.MaxRetries,
		PoolSize:    config.Redis.PoolSize,
		PoolTimeout: config.Redis.PoolTimeout,
	}
}

func NewMongoConfig(config *Config) *mongodb.MongoConfig {
	return &mongodb.MongoConfig{
		URI:            config.MongoDB.URI,
		Database:       config.MongoDB.Database,
		ConnectTimeout: config.MongoDB.ConnectTimeout,
		MaxPoolSize:    config.MongoDB.MaxPoolSize,
	}
}

// Helpers pour parsing variables d'environnement
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds))
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// validateConfig valide la configuration selon l'environnement
func validateConfig(config *Config) error {
	env := config.Environment

	// Validation environnements supportés
	if env != "development" && env != "docker" {
		return fmt.Errorf("environnement non supporté: %s (utilisez 'development' ou 'docker')", env)
	}

	missingVars := []string{}

	// Variables critiques en mode docker (production/staging)
	if env == "docker" {
		if config.Database.Password == "" {
			missingVars = append(missingVars, "DB_PASSWORD")
		}

		// Warning pour variables recommandées en docker
		if config.Redis.Password == "" {
			fmt.Printf("[CONFIG] ⚠️ REDIS_PASSWORD non défini pour environnement docker\n")
		}
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("variables critiques manquantes pour environnement docker: %v", missingVars)
	}

	// Garde-fous attribution : un retry non borné bloquerait l'accueil
	if config.Registre.MaxTentatives < 1 {
		return fmt.Errorf("REGISTRE_MAX_TENTATIVES doit être >= 1 (reçu %d)", config.Registre.MaxTentatives)
	}
	if config.Registre.LockTimeout <= 0 {
		return fmt.Errorf("REGISTRE_LOCK_TIMEOUT_MS doit être > 0")
	}

	return nil
}
