package queries

// PTHNSequenceQueries regroupe toutes les requêtes SQL du compteur PTHN annuel
var PTHNSequenceQueries = struct {
	EnsureSequenceExists string
	LockSequence         string
	SaveSequence         string
	GetSequenceState     string
	SeedSequence         string
}{
	/**
	 * Crée paresseusement le compteur d'une année à 0 s'il n'existe pas encore.
	 * Exécutée dans la même transaction que LockSequence.
	 * Paramètres: $1 = annee
	 */
	EnsureSequenceExists: `
		INSERT INTO patients_pthn_sequences (annee, dernier_numero, nombre_generes)
		VALUES ($1, 0, 0)
		ON CONFLICT (annee) DO NOTHING
	`,

	/**
	 * Lit le dernier numéro attribué sous verrou exclusif de ligne.
	 * Le verrou sérialise toutes les allocations concurrentes de la même année.
	 * Paramètres: $1 = annee
	 * Retour: dernier_numero
	 */
	LockSequence: `
		SELECT dernier_numero
		FROM patients_pthn_sequences
		WHERE annee = $1
		FOR UPDATE
	`,

	/**
	 * Persiste le numéro fraîchement attribué. Appelée uniquement sous le
	 * verrou pris par LockSequence, jamais en dehors du protocole d'attribution.
	 * Paramètres: $1 = annee, $2 = nouveau dernier_numero
	 */
	SaveSequence: `
		UPDATE patients_pthn_sequences
		SET dernier_numero = $2,
			nombre_generes = nombre_generes + 1,
			updated_at = NOW()
		WHERE annee = $1
	`,

	/**
	 * Lecture non verrouillante de l'état du compteur (stats, aperçu).
	 * Paramètres: $1 = annee
	 * Retour: annee, dernier_numero, nombre_generes
	 */
	GetSequenceState: `
		SELECT annee, dernier_numero, nombre_generes
		FROM patients_pthn_sequences
		WHERE annee = $1
	`,

	/**
	 * Pré-initialise le compteur de l'année courante au démarrage (seeding).
	 * Paramètres: $1 = annee
	 */
	SeedSequence: `
		INSERT INTO patients_pthn_sequences (annee, dernier_numero, nombre_generes)
		VALUES ($1, 0, 0)
		ON CONFLICT (annee) DO NOTHING
		RETURNING annee
	`,
}
