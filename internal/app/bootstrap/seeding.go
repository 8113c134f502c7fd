package bootstrap

import (
	"context"
	"fmt"
	"time"

	"registre-patient-core/internal/app/config"
	"registre-patient-core/internal/modules/core-services/pthn/store"
)

// SeedingManager pré-crée le compteur de séquence de l'année courante pour
// éviter la création paresseuse lors du tout premier enregistrement
type SeedingManager struct {
	store  store.Store
	config *config.Config
	now    func() time.Time
}

// NewSeedingManager crée une nouvelle instance du gestionnaire de seeding
func NewSeedingManager(st store.Store, cfg *config.Config) *SeedingManager {
	return &SeedingManager{
		store:  st,
		config: cfg,
		now:    time.Now,
	}
}

// CheckSeedDataExists vérifie si le compteur de l'année courante existe déjà
func (sm *SeedingManager) CheckSeedDataExists(ctx context.Context) (bool, error) {
	annee := sm.now().Year()
	fmt.Printf("[SEEDING] Vérification compteur séquence année %d\n", annee)

	state, err := sm.store.GetSequenceState(ctx, annee)
	if err != nil {
		return false, fmt.Errorf("erreur vérification compteur séquence: %w", err)
	}
	return state != nil, nil
}

// ApplySeeding crée le compteur de l'année courante si nécessaire
func (sm *SeedingManager) ApplySeeding(ctx context.Context, exists bool) error {
	if !sm.config.Registre.SeedAnneeCourante {
		fmt.Printf("[SEEDING] ⚠️  Seeding désactivé par configuration\n")
		return nil
	}

	annee := sm.now().Year()
	if exists {
		fmt.Printf("[SEEDING] ✅ Compteur séquence %d déjà présent\n", annee)
		return nil
	}

	if err := sm.store.SeedSequence(ctx, annee); err != nil {
		return fmt.Errorf("erreur création compteur séquence %d: %w", annee, err)
	}

	fmt.Printf("[SEEDING] ✅ Compteur séquence %d initialisé à 0\n", annee)
	return nil
}
