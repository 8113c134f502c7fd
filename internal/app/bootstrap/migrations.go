package bootstrap

import (
	"context"
	"fmt"

	"registre-patient-core/internal/app/config"
	"registre-patient-core/internal/infrastructure/database/migrations"
	"registre-patient-core/internal/infrastructure/database/postgres"
)

// MigrationManager applique les migrations SQL embarquées :
// 1. Créer la table de suivi schema_migrations si absente
// 2. Appliquer chaque fichier non encore enregistré, dans l'ordre des noms
type MigrationManager struct {
	pgClient *postgres.Client
	config   *config.Config
}

// MigrationStatus représente l'état des migrations
type MigrationStatus struct {
	Status        string `json:"status"` // PENDING, UP_TO_DATE
	AppliedFiles  int    `json:"applied_files"`
	PendingFiles  int    `json:"pending_files"`
	LatestApplied string `json:"latest_applied"`
}

// NewMigrationManager crée une nouvelle instance du gestionnaire de migrations
func NewMigrationManager(pgClient *postgres.Client, cfg *config.Config) *MigrationManager {
	return &MigrationManager{
		pgClient: pgClient,
		config:   cfg,
	}
}

// EnsureMigrationsApplied applique toutes les migrations en attente
func (mm *MigrationManager) EnsureMigrationsApplied(ctx context.Context) error {
	fmt.Printf("[MIGRATIONS] 🔍 Vérification état migrations embarquées\n")

	if err := mm.ensureLedgerTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure schema_migrations table: %w", err)
	}

	status, err := mm.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	fmt.Printf("[MIGRATIONS] 📊 Statut: %s, Appliquées: %d, En attente: %d\n",
		status.Status, status.AppliedFiles, status.PendingFiles)

	if status.PendingFiles == 0 {
		fmt.Printf("[MIGRATIONS] ✅ Schéma à jour - aucune migration nécessaire\n")
		return nil
	}

	applied, err := mm.appliedNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list applied migrations: %w", err)
	}

	all, err := migrations.All()
	if err != nil {
		return fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	for _, migration := range all {
		if applied[migration.Name] {
			continue
		}
		if err := mm.applyOne(ctx, migration); err != nil {
			return fmt.Errorf("migration %s failed: %w", migration.Name, err)
		}
	}

	fmt.Printf("[MIGRATIONS] ✅ Toutes les migrations sont appliquées\n")
	return nil
}

// GetStatus récupère le statut des migrations embarquées vs la table de suivi
func (mm *MigrationManager) GetStatus(ctx context.Context) (*MigrationStatus, error) {
	applied, err := mm.appliedNames(ctx)
	if err != nil {
		return nil, err
	}

	all, err := migrations.All()
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	status := &MigrationStatus{
		Status:        "UP_TO_DATE",
		LatestApplied: "Aucune migration appliquée",
	}

	for _, migration := range all {
		if applied[migration.Name] {
			status.AppliedFiles++
			status.LatestApplied = migration.Name
		} else {
			status.PendingFiles++
		}
	}

	if status.PendingFiles > 0 {
		status.Status = "PENDING"
	}

	return status, nil
}

// ensureLedgerTable crée la table de suivi des migrations
func (mm *MigrationManager) ensureLedgerTable(ctx context.Context) error {
	return mm.pgClient.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name       VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
}

// appliedNames retourne l'ensemble des migrations déjà enregistrées
func (mm *MigrationManager) appliedNames(ctx context.Context) (map[string]bool, error) {
	rows, err := mm.pgClient.Query(ctx, `SELECT name FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

// applyOne applique une migration et l'enregistre dans la même transaction
func (mm *MigrationManager) applyOne(ctx context.Context, migration migrations.Migration) error {
	fmt.Printf("[MIGRATIONS] 🔄 Application migration: %s\n", migration.Name)

	tx, err := mm.pgClient.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, migration.SQL); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, migration.Name); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit migration: %w", err)
	}

	fmt.Printf("[MIGRATIONS] ✅ Migration appliquée: %s\n", migration.Name)
	return nil
}
