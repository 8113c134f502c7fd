package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"registre-patient-core/internal/infrastructure/database/redis"
	"registre-patient-core/internal/modules/core-services/pthn/dto"
	"registre-patient-core/internal/modules/core-services/pthn/store"
)

// IdentiteRegistryService est l'autorité de lecture du registre d'identités :
// répond à "cette pièce d'identité possède-t-elle déjà un PTHN ?".
// La consultation est sans effet de bord et librement répétable ; seule la
// re-lecture dans la transaction d'enregistrement fait foi.
type IdentiteRegistryService struct {
	store     store.Store
	redis     *redis.Client
	redisKeys *PTHNRedisKeys
	cacheTTL  time.Duration

	cniRegex       *regexp.Regexp
	passeportRegex *regexp.Regexp
	separateurs    *strings.Replacer
}

// NewIdentiteRegistryService crée une nouvelle instance du service.
// redis peut être nil (mode sans cache) : la consultation retombe sur le store.
func NewIdentiteRegistryService(st store.Store, redisClient *redis.Client, cacheTTL time.Duration) *IdentiteRegistryService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &IdentiteRegistryService{
		store:     st,
		redis:     redisClient,
		redisKeys: NewPTHNRedisKeys(),
		cacheTTL:  cacheTTL,

		// CNI : chiffres uniquement. Passeport : alphanumérique majuscule.
		cniRegex:       regexp.MustCompile(`^[0-9]{6,20}$`),
		passeportRegex: regexp.MustCompile(`^[A-Z0-9]{5,15}$`),
		separateurs:    strings.NewReplacer(" ", "", "-", "", ".", "", "/", ""),
	}
}

// Normalize normalise une pièce d'identité brute (séparateurs retirés,
// majuscules pour les passeports) puis la valide. Toute valeur qui ne
// se normalise pas en forme canonique est rejetée en INVALID_FORMAT avant
// tout accès storage.
func (s *IdentiteRegistryService) Normalize(typePiece, numeroPiece string) (string, error) {
	numero := s.separateurs.Replace(strings.TrimSpace(numeroPiece))

	switch typePiece {
	case dto.TypePieceCNI:
		if !s.cniRegex.MatchString(numero) {
			return "", dto.NewFormatError("numéro CNI invalide: chiffres uniquement attendus (6 à 20)")
		}
	case dto.TypePiecePasseport:
		numero = strings.ToUpper(numero)
		if !s.passeportRegex.MatchString(numero) {
			return "", dto.NewFormatError("numéro de passeport invalide: alphanumérique attendu (5 à 15)")
		}
	default:
		return "", dto.NewFormatError(fmt.Sprintf("type de pièce inconnu: %q", typePiece))
	}

	return numero, nil
}

// Lookup est la consultation du registre : cache Redis d'abord, PostgreSQL en
// repli. Le résultat peut être périmé entre l'aperçu et la soumission — cette
// péremption est résolue par la re-lecture autoritative dans la transaction
// d'enregistrement, jamais en faisant confiance à l'aperçu.
// Le numéro fourni doit déjà être normalisé.
func (s *IdentiteRegistryService) Lookup(ctx context.Context, typePiece, numeroPiece string) (*dto.Identite, string, error) {
	if identite := s.lookupFromCache(ctx, typePiece, numeroPiece); identite != nil {
		return identite, "redis", nil
	}

	identite, err := s.store.GetIdentite(ctx, typePiece, numeroPiece)
	if err != nil {
		return nil, "", fmt.Errorf("failed to lookup identite: %w", err)
	}

	if identite != nil {
		s.WarmCache(ctx, identite)
	}
	return identite, "postgres", nil
}

// WarmCache met l'identité en cache Redis (best effort, erreurs ignorées)
func (s *IdentiteRegistryService) WarmCache(ctx context.Context, identite *dto.Identite) {
	if s.redis == nil || identite == nil {
		return
	}
	payload, err := json.Marshal(identite)
	if err != nil {
		return
	}
	key := s.redisKeys.IdentiteCacheKey(identite.TypePiece, identite.NumeroPiece)
	s.redis.Set(ctx, key, string(payload), s.cacheTTL)
}

func (s *IdentiteRegistryService) lookupFromCache(ctx context.Context, typePiece, numeroPiece string) *dto.Identite {
	if s.redis == nil {
		return nil
	}
	key := s.redisKeys.IdentiteCacheKey(typePiece, numeroPiece)
	payload, err := s.redis.Get(ctx, key)
	if err != nil || payload == "" {
		return nil
	}
	var identite dto.Identite
	if err := json.Unmarshal([]byte(payload), &identite); err != nil {
		return nil
	}
	return &identite
}

// MaskNumero masque un numéro de pièce pour les logs (4 derniers caractères).
// Les numéros de pièce ne sont jamais loggés en clair.
func MaskNumero(numero string) string {
	if len(numero) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(numero)-4) + numero[len(numero)-4:]
}
