package bootstrap

import (
	"context"
	"fmt"
	"time"

	"registre-patient-core/internal/app/config"
	pgInfra "registre-patient-core/internal/infrastructure/database/postgres"
	"registre-patient-core/internal/modules/core-services/pthn/store"

	"go.uber.org/fx"
)

// BootstrapSystem orchestre le processus de démarrage automatique
// Version simplifiée : 2 phases séquentielles sans surcomplexité
type BootstrapSystem struct {
	migrationManager *MigrationManager
	seedingManager   *SeedingManager
	config           *config.Config
	timeout          time.Duration
}

// BootstrapResult contient le résultat d'exécution du bootstrap
type BootstrapResult struct {
	Success        bool          `json:"success"`
	TotalDuration  time.Duration `json:"total_duration"`
	PhasesExecuted []PhaseResult `json:"phases_executed"`
	ErrorMessage   string        `json:"error_message,omitempty"`
}

// PhaseResult contient le résultat d'une phase du bootstrap
type PhaseResult struct {
	Phase       string        `json:"phase"`
	Success     bool          `json:"success"`
	Duration    time.Duration `json:"duration"`
	Description string        `json:"description"`
	Error       string        `json:"error,omitempty"`
}

// NewBootstrapSystem crée une nouvelle instance du système de bootstrap
func NewBootstrapSystem(
	migrationManager *MigrationManager,
	seedingManager *SeedingManager,
	config *config.Config,
) *BootstrapSystem {
	return &BootstrapSystem{
		migrationManager: migrationManager,
		seedingManager:   seedingManager,
		config:           config,
		timeout:          2 * time.Minute, // Timeout global
	}
}

// Execute lance le processus de bootstrap complet avec les 2 phases
func (bs *BootstrapSystem) Execute() (*BootstrapResult, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), bs.timeout)
	defer cancel()

	fmt.Printf("[BOOTSTRAP] Démarrage BootstrapSystem (timeout: %v)\n", bs.timeout)

	result := &BootstrapResult{
		Success:        true,
		PhasesExecuted: []PhaseResult{},
	}

	// Phase 1: Migrations SQL embarquées
	phase1Result := bs.executePhase1(ctx)
	result.PhasesExecuted = append(result.PhasesExecuted, phase1Result)
	if !phase1Result.Success {
		result.Success = false
		result.ErrorMessage = fmt.Sprintf("Phase 1 échouée: %s", phase1Result.Error)
		return bs.finalizeResult(result, startTime), fmt.Errorf("bootstrap failed at phase 1: %s", phase1Result.Error)
	}

	// Phase 2: Seeding compteur de séquence
	phase2Result := bs.executePhase2(ctx)
	result.PhasesExecuted = append(result.PhasesExecuted, phase2Result)
	if !phase2Result.Success {
		result.Success = false
		result.ErrorMessage = fmt.Sprintf("Phase 2 échouée: %s", phase2Result.Error)
		return bs.finalizeResult(result, startTime), fmt.Errorf("bootstrap failed at phase 2: %s", phase2Result.Error)
	}

	// Succès complet
	result = bs.finalizeResult(result, startTime)
	fmt.Printf("[BOOTSTRAP] ✅ BootstrapSystem terminé avec succès en %v\n", result.TotalDuration)
	fmt.Printf("[BOOTSTRAP] 🎯 Application prête pour démarrage serveur HTTP\n")

	return result, nil
}

// executePhase1 exécute la Phase 1: Migrations SQL embarquées
func (bs *BootstrapSystem) executePhase1(ctx context.Context) PhaseResult {
	startTime := time.Now()
	phase := "Phase 1: Migrations SQL"

	fmt.Printf("[BOOTSTRAP] 🗄️  Démarrage %s\n", phase)

	err := bs.migrationManager.EnsureMigrationsApplied(ctx)
	duration := time.Since(startTime)

	if err != nil {
		fmt.Printf("[BOOTSTRAP] ❌ %s échouée en %v: %v\n", phase, duration, err)
		return PhaseResult{
			Phase:       phase,
			Success:     false,
			Duration:    duration,
			Description: "Application migrations embarquées",
			Error:       err.Error(),
		}
	}

	fmt.Printf("[BOOTSTRAP] ✅ %s terminée en %v\n", phase, duration)
	return PhaseResult{
		Phase:       phase,
		Success:     true,
		Duration:    duration,
		Description: "Migrations embarquées appliquées avec succès",
	}
}

// executePhase2 exécute la Phase 2: Seeding compteur de séquence
func (bs *BootstrapSystem) executePhase2(ctx context.Context) PhaseResult {
	startTime := time.Now()
	phase := "Phase 2: Seeding séquence"

	fmt.Printf("[BOOTSTRAP] 🌱 Démarrage %s\n", phase)

	exists, err := bs.seedingManager.CheckSeedDataExists(ctx)
	if err != nil {
		duration := time.Since(startTime)
		fmt.Printf("[BOOTSTRAP] ❌ %s - Erreur vérification données en %v: %v\n", phase, duration, err)
		return PhaseResult{
			Phase:       phase,
			Success:     false,
			Duration:    duration,
			Description: "Vérification compteur existant",
			Error:       fmt.Sprintf("data check failed: %v", err),
		}
	}

	err = bs.seedingManager.ApplySeeding(ctx, exists)
	duration := time.Since(startTime)

	if err != nil {
		fmt.Printf("[BOOTSTRAP] ❌ %s échouée en %v: %v\n", phase, duration, err)
		return PhaseResult{
			Phase:       phase,
			Success:     false,
			Duration:    duration,
			Description: "Initialisation compteur de séquence",
			Error:       err.Error(),
		}
	}

	fmt.Printf("[BOOTSTRAP] ✅ %s terminée en %v\n", phase, duration)
	return PhaseResult{
		Phase:       phase,
		Success:     true,
		Duration:    duration,
		Description: "Compteur de séquence de l'année courante prêt",
	}
}

// finalizeResult finalise le résultat avec la durée totale
func (bs *BootstrapSystem) finalizeResult(result *BootstrapResult, startTime time.Time) *BootstrapResult {
	result.TotalDuration = time.Since(startTime)
	return result
}

// GetTimeout retourne le timeout configuré
func (bs *BootstrapSystem) GetTimeout() time.Duration {
	return bs.timeout
}

// SetTimeout configure un nouveau timeout (utile pour les tests)
func (bs *BootstrapSystem) SetTimeout(timeout time.Duration) {
	bs.timeout = timeout
}

// Providers Fx pour le système de bootstrap

// NewBootstrapMigrationManager provider pour le gestionnaire de migrations
func NewBootstrapMigrationManager(pgClient *pgInfra.Client, cfg *config.Config) *MigrationManager {
	return NewMigrationManager(pgClient, cfg)
}

// NewBootstrapSeedingManager provider pour le gestionnaire de seeding
func NewBootstrapSeedingManager(st store.Store, cfg *config.Config) *SeedingManager {
	return NewSeedingManager(st, cfg)
}

// RegisterBootstrapLifecycle enregistre le système de bootstrap dans le cycle de vie Fx
func RegisterBootstrapLifecycle(
	lc fx.Lifecycle,
	bootstrap *BootstrapSystem,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			fmt.Printf("[LIFECYCLE] 🚀 Démarrage BootstrapSystem AVANT serveur HTTP\n")

			result, err := bootstrap.Execute()
			if err != nil {
				fmt.Printf("[LIFECYCLE] ❌ Bootstrap échoué: %v\n", err)
				return fmt.Errorf("bootstrap system failed: %w", err)
			}

			fmt.Printf("[LIFECYCLE] ✅ Bootstrap terminé en %v\n", result.TotalDuration)
			fmt.Printf("[LIFECYCLE] 🎯 Système prêt pour démarrage serveur HTTP\n")

			return nil
		},
		OnStop: func(ctx context.Context) error {
			fmt.Printf("[LIFECYCLE] 🛑 Arrêt BootstrapSystem\n")
			return nil
		},
	})
}
