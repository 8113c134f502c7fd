package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"registre-patient-core/internal/infrastructure/database/mongodb"
	"registre-patient-core/internal/modules/core-services/brouillon/dto"
)

const (
	collectionBrouillons = "enregistrement_brouillons"

	// Un brouillon abandonné est purgé par l'index TTL MongoDB
	dureeVieBrouillon = 24 * time.Hour
)

// BrouillonService gère les brouillons de formulaire d'enregistrement.
// Tout est consultatif : la perte d'un brouillon n'affecte jamais le registre.
type BrouillonService struct {
	mongo *mongodb.Client
	now   func() time.Time
}

func NewBrouillonService(client *mongodb.Client) *BrouillonService {
	return &BrouillonService{
		mongo: client,
		now:   time.Now,
	}
}

// EnsureIndexes crée l'index TTL de purge des brouillons expirés
func (s *BrouillonService) EnsureIndexes(ctx context.Context) error {
	if s.mongo == nil {
		return nil
	}
	err := s.mongo.CreateIndex(ctx, collectionBrouillons,
		bson.D{{Key: "expires_at", Value: 1}},
		options.Index().SetExpireAfterSeconds(0),
	)
	if err != nil {
		return fmt.Errorf("failed to create brouillons TTL index: %w", err)
	}
	return nil
}

// Save crée ou met à jour un brouillon. Un identifiant vide déclenche une création.
func (s *BrouillonService) Save(ctx context.Context, id string, req *dto.BrouillonRequest) (*dto.Brouillon, error) {
	if s.mongo == nil {
		return nil, fmt.Errorf("brouillons indisponibles: MongoDB non connecté")
	}

	maintenant := s.now()
	if id == "" {
		id = uuid.New().String()
	}

	brouillon := &dto.Brouillon{
		ID:          id,
		TypePiece:   req.TypePiece,
		NumeroPiece: req.NumeroPiece,
		Formulaire:  req.Formulaire,
		PreviewPTHN: req.PreviewPTHN,
		UpdatedAt:   maintenant,
		ExpiresAt:   maintenant.Add(dureeVieBrouillon),
	}

	update := bson.M{
		"$set": bson.M{
			"type_piece":   brouillon.TypePiece,
			"numero_piece": brouillon.NumeroPiece,
			"formulaire":   brouillon.Formulaire,
			"preview_pthn": brouillon.PreviewPTHN,
			"updated_at":   brouillon.UpdatedAt,
			"expires_at":   brouillon.ExpiresAt,
		},
		"$setOnInsert": bson.M{
			"created_at": maintenant,
		},
	}

	_, err := s.mongo.Collection(collectionBrouillons).UpdateByID(
		ctx, id, update, options.Update().SetUpsert(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save brouillon: %w", err)
	}

	// Relire pour retourner created_at réel (création vs mise à jour)
	return s.Get(ctx, id)
}

// Get retourne un brouillon par identifiant, nil si absent ou expiré
func (s *BrouillonService) Get(ctx context.Context, id string) (*dto.Brouillon, error) {
	if s.mongo == nil {
		return nil, fmt.Errorf("brouillons indisponibles: MongoDB non connecté")
	}

	var brouillon dto.Brouillon
	err := s.mongo.Collection(collectionBrouillons).FindOne(ctx, bson.M{"_id": id}).Decode(&brouillon)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get brouillon: %w", err)
	}
	return &brouillon, nil
}

// Delete supprime un brouillon (après soumission réussie de l'enregistrement)
func (s *BrouillonService) Delete(ctx context.Context, id string) error {
	if s.mongo == nil {
		return nil
	}
	_, err := s.mongo.Collection(collectionBrouillons).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete brouillon: %w", err)
	}
	return nil
}
