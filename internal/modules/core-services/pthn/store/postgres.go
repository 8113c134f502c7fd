package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"registre-patient-core/internal/infrastructure/database/postgres"
	"registre-patient-core/internal/modules/core-services/pthn/dto"
	"registre-patient-core/internal/modules/core-services/pthn/queries"
)

// Codes d'erreur PostgreSQL traduits vers la taxonomie du registre
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
)

// Contraintes du schéma (migrations 0001/0002)
const (
	constraintIdentitePiece = "patients_identite_piece_unique"
	constraintIdentitePTHN  = "patients_identite_pthn_unique"
)

// PostgresStore est l'implémentation autoritative du registre, adossée aux
// contraintes d'unicité du schéma et au verrou de ligne FOR UPDATE.
type PostgresStore struct {
	db          *postgres.Client
	txManager   *postgres.TransactionManager
	lockTimeout time.Duration
}

// NewPostgresStore crée le store PostgreSQL.
// lockTimeout borne l'attente du verrou de séquence : au-delà, l'unité échoue
// en ALLOCATION_TIMEOUT plutôt que de retenir le caller indéfiniment.
func NewPostgresStore(db *postgres.Client, txManager *postgres.TransactionManager, lockTimeout time.Duration) *PostgresStore {
	if lockTimeout <= 0 {
		lockTimeout = 3 * time.Second
	}
	return &PostgresStore{
		db:          db,
		txManager:   txManager,
		lockTimeout: lockTimeout,
	}
}

func (s *PostgresStore) GetIdentite(ctx context.Context, typePiece, numeroPiece string) (*dto.Identite, error) {
	return scanIdentite(s.db.QueryRow(ctx, queries.IdentiteQueries.GetByPiece, typePiece, numeroPiece))
}

func (s *PostgresStore) GetSequenceState(ctx context.Context, annee int) (*dto.SequenceState, error) {
	var state dto.SequenceState
	err := s.db.QueryRow(ctx, queries.PTHNSequenceQueries.GetSequenceState, annee).
		Scan(&state.Annee, &state.DernierNumero, &state.NombreGeneres)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sequence state: %w", err)
	}
	return &state, nil
}

func (s *PostgresStore) SeedSequence(ctx context.Context, annee int) error {
	var seeded int
	err := s.db.QueryRow(ctx, queries.PTHNSequenceQueries.SeedSequence, annee).Scan(&seeded)
	if errors.Is(err, pgx.ErrNoRows) {
		// Compteur déjà présent
		return nil
	}
	return err
}

func (s *PostgresStore) RunAtomic(ctx context.Context, fn func(tx Atomic) error) error {
	err := s.txManager.WithTransactionIsolation(ctx, pgx.Serializable, func(tx *postgres.Transaction) error {
		// Attente de verrou bornée, locale à l'unité
		if err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
			return err
		}
		return fn(&postgresAtomic{tx: tx})
	})
	return mapPgError(err)
}

// postgresAtomic est la vue transactionnelle du store
type postgresAtomic struct {
	tx *postgres.Transaction
}

func (a *postgresAtomic) GetIdentite(ctx context.Context, typePiece, numeroPiece string) (*dto.Identite, error) {
	identite, err := scanIdentite(a.tx.QueryRow(ctx, queries.IdentiteQueries.GetByPiece, typePiece, numeroPiece))
	if err != nil {
		return nil, mapPgError(err)
	}
	return identite, nil
}

func (a *postgresAtomic) LockSequence(ctx context.Context, annee int) (int, error) {
	// Création paresseuse du compteur de l'année, puis lecture verrouillée.
	// Sous Serializable, deux créations simultanées se résolvent en
	// serialization_failure, traduite en conflit retryable.
	if err := a.tx.Exec(ctx, queries.PTHNSequenceQueries.EnsureSequenceExists, annee); err != nil {
		return 0, mapPgError(err)
	}

	var dernierNumero int
	if err := a.tx.QueryRow(ctx, queries.PTHNSequenceQueries.LockSequence, annee).Scan(&dernierNumero); err != nil {
		return 0, mapPgError(err)
	}
	return dernierNumero, nil
}

func (a *postgresAtomic) SaveSequence(ctx context.Context, annee, numero int) error {
	return mapPgError(a.tx.Exec(ctx, queries.PTHNSequenceQueries.SaveSequence, annee, numero))
}

func (a *postgresAtomic) InsertIdentite(ctx context.Context, identite *dto.Identite) error {
	err := a.tx.QueryRow(ctx,
		queries.IdentiteQueries.InsertIdentite,
		identite.ID,
		identite.TypePiece,
		identite.NumeroPiece,
		identite.PTHN,
	).Scan(&identite.CreatedAt)
	return mapPgError(err)
}

func scanIdentite(row pgx.Row) (*dto.Identite, error) {
	var identite dto.Identite
	err := row.Scan(
		&identite.ID,
		&identite.TypePiece,
		&identite.NumeroPiece,
		&identite.PTHN,
		&identite.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read identite: %w", err)
	}
	return &identite, nil
}

// mapPgError traduit les échecs storage vers la taxonomie du registre.
// Le registre n'avale jamais une violation d'unicité : elle devient toujours
// DUPLICATE_IDENTITY ou ALLOCATION_CONFLICT pour que la couche boundary rende
// un message exact.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}

	// Déjà traduite (erreur métier remontée par le service)
	var re *dto.RegistreError
	if errors.As(err, &re) {
		return re
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == constraintIdentitePTHN {
				// Pathologique : deux unités ont émis le même PTHN
				return dto.NewConflitError("conflit d'unicité sur le PTHN attribué")
			}
			// Une unité concurrente a gagné la course sur la même identité.
			// Pas d'identité existante attachée ici : le caller relit via le
			// protocole complet.
			return dto.NewDoublonError(nil)
		case pgSerializationFailure, pgDeadlockDetected:
			return dto.NewConflitError("échec de sérialisation de l'unité de travail")
		case pgLockNotAvailable:
			return dto.NewTimeoutError("verrou de séquence non obtenu dans le délai imparti")
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return dto.NewTimeoutError("unité de travail interrompue par timeout")
	}

	return err
}
