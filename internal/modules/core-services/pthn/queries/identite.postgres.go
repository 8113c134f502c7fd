package queries

// IdentiteQueries regroupe toutes les requêtes SQL du registre d'identités
var IdentiteQueries = struct {
	GetByPiece     string
	InsertIdentite string
}{
	/**
	 * Recherche une identité par pièce normalisée. Sert à la fois au check
	 * consultatif (hors transaction) et à la re-vérification autoritative
	 * (dans la transaction d'attribution).
	 * Paramètres: $1 = type_piece, $2 = numero_piece (normalisé)
	 * Retour: id, type_piece, numero_piece, pthn, created_at
	 */
	GetByPiece: `
		SELECT id, type_piece, numero_piece, pthn, created_at
		FROM patients_identite
		WHERE type_piece = $1 AND numero_piece = $2
	`,

	/**
	 * Insère la nouvelle identité avec son PTHN. L'unicité (type_piece,
	 * numero_piece) et l'unicité du PTHN sont garanties par les contraintes
	 * du schéma : la vérification applicative seule est insuffisante sous
	 * concurrence.
	 * Paramètres: $1 = id, $2 = type_piece, $3 = numero_piece, $4 = pthn
	 * Retour: created_at
	 */
	InsertIdentite: `
		INSERT INTO patients_identite (id, type_piece, numero_piece, pthn, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`,
}
