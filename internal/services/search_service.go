package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"

	"github.com/quangtmn/visitreg/internal/access"
	"github.com/quangtmn/visitreg/internal/cache"
	"github.com/quangtmn/visitreg/internal/models"
	"github.com/quangtmn/visitreg/pkg/textnorm"
)

// SearchStore defines the interface for search data access
type SearchStore interface {
	CurrentVersion(ctx context.Context) (int64, error)
	FindByPassports(ctx context.Context, scope access.Scope, passports []string) ([]*models.Record, error)
	FindByNamePatterns(ctx context.Context, scope access.Scope, patterns []string) ([]*models.Record, error)
}

// SearchService resolves lookup keys against the record store. A batch of
// keys costs at most two set queries regardless of batch size: one for the
// passport-shaped keys, one for the name keys.
type SearchService struct {
	store    SearchStore
	cache    cache.Cache
	maxBatch int
	logger   *slog.Logger
}

// NewSearchService creates a new SearchService
func NewSearchService(store SearchStore, c cache.Cache, maxBatch int, logger *slog.Logger) *SearchService {
	return &SearchService{
		store:    store,
		cache:    c,
		maxBatch: maxBatch,
		logger:   logger,
	}
}

// searchKey is one classified lookup key.
type searchKey struct {
	raw  string
	kind models.KeyKind
	norm string // normalized passport or name; empty when unusable
}

// classifyKey decides whether a key is matched as a passport number or as a
// name. Passport-shaped keys (>= 5 alphanumerics after normalization) match
// exactly; everything else matches as a normalized name substring. Name
// needles under two characters match nothing rather than everything.
func classifyKey(raw string) searchKey {
	if textnorm.IsPassportShaped(raw) {
		return searchKey{raw: raw, kind: models.KeyKindPassport, norm: textnorm.Passport(raw)}
	}
	norm := textnorm.Name(raw)
	if len([]rune(norm)) < 2 {
		norm = ""
	}
	return searchKey{raw: raw, kind: models.KeyKindName, norm: norm}
}

// Search resolves a single key. A miss is a Found=false result, not an
// error.
func (s *SearchService) Search(ctx context.Context, user *models.User, key string) (models.SearchResult, error) {
	results, _, err := s.SearchBatch(ctx, user, []string{key})
	if err != nil {
		return models.SearchResult{}, err
	}
	return results[0], nil
}

// SearchBatch resolves every key in order. The returned slice always has one
// entry per input key, in input order, with explicit not-found markers for
// misses. Returns the store version the results were computed against.
func (s *SearchService) SearchBatch(ctx context.Context, user *models.User, keys []string) ([]models.SearchResult, int64, error) {
	if len(keys) > s.maxBatch {
		s.logger.Info("batch search over budget",
			slog.Int("keys", len(keys)), slog.Int("max", s.maxBatch))
		return nil, 0, models.ErrQueryTooLarge
	}

	version, err := s.store.CurrentVersion(ctx)
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			return nil, 0, err
		}
		s.logger.Error("failed to read store version", slog.Any("error", err))
		return nil, 0, models.ErrInternalServer
	}

	classified := make([]searchKey, len(keys))
	for i, raw := range keys {
		classified[i] = classifyKey(raw)
	}

	scope := access.ScopeFor(user)
	if scope.IsNone() {
		// Fail closed: indistinguishable from an empty store.
		results := make([]models.SearchResult, len(keys))
		for i, k := range classified {
			results[i] = models.NotFound(k.raw, k.kind)
		}
		return results, version, nil
	}

	key := cache.Key{
		Shape:   searchShape(classified),
		Scope:   scope.CacheKey(),
		Version: version,
	}

	value, err := cache.GetOrCompute(ctx, s.cache, key, func(ctx context.Context) (any, error) {
		return s.resolve(ctx, scope, classified)
	})
	if err != nil {
		if errors.Is(err, models.ErrStoreUnavailable) {
			return nil, 0, err
		}
		s.logger.Error("batch search failed", slog.Int("keys", len(keys)), slog.Any("error", err))
		return nil, 0, models.ErrInternalServer
	}

	results, ok := value.([]models.SearchResult)
	if !ok {
		s.logger.Error("unexpected cached type for search result")
		return nil, 0, models.ErrInternalServer
	}
	return results, version, nil
}

// resolve runs the two set queries and redistributes the rows to their keys.
func (s *SearchService) resolve(ctx context.Context, scope access.Scope, keys []searchKey) ([]models.SearchResult, error) {
	passports := make([]string, 0)
	patterns := make([]string, 0)
	seenPassport := make(map[string]bool)
	seenPattern := make(map[string]bool)

	for _, k := range keys {
		if k.norm == "" {
			continue
		}
		switch k.kind {
		case models.KeyKindPassport:
			if !seenPassport[k.norm] {
				seenPassport[k.norm] = true
				passports = append(passports, k.norm)
			}
		case models.KeyKindName:
			if !seenPattern[k.norm] {
				seenPattern[k.norm] = true
				patterns = append(patterns, "%"+escapeLike(k.norm)+"%")
			}
		}
	}

	byPassport := make(map[string][]*models.Record)
	if len(passports) > 0 {
		recs, err := s.store.FindByPassports(ctx, scope, passports)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			byPassport[rec.PassportNumber] = append(byPassport[rec.PassportNumber], rec)
		}
	}

	var nameRecs []*models.Record
	if len(patterns) > 0 {
		recs, err := s.store.FindByNamePatterns(ctx, scope, patterns)
		if err != nil {
			return nil, err
		}
		nameRecs = recs
	}

	results := make([]models.SearchResult, len(keys))
	for i, k := range keys {
		if k.norm == "" {
			results[i] = models.NotFound(k.raw, k.kind)
			continue
		}
		var matched []*models.Record
		switch k.kind {
		case models.KeyKindPassport:
			matched = byPassport[k.norm]
		case models.KeyKindName:
			// The set query returned the union; filter rows back to this
			// needle. Row order from the query is entry date descending.
			for _, rec := range nameRecs {
				if strings.Contains(rec.NameNormalized, k.norm) {
					matched = append(matched, rec)
				}
			}
		}
		if len(matched) == 0 {
			results[i] = models.NotFound(k.raw, k.kind)
			continue
		}
		results[i] = models.SearchResult{Key: k.raw, Kind: k.kind, Found: true, Records: matched}
	}
	return results, nil
}

// searchShape renders the classified keys into a stable cache key component.
// Hashed so arbitrarily large batches stay bounded.
func searchShape(keys []searchKey) string {
	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(string(k.kind)))
		h.Write([]byte{':'})
		h.Write([]byte(k.norm))
		h.Write([]byte{'\n'})
	}
	return "search:" + hex.EncodeToString(h.Sum(nil))
}

// escapeLike escapes LIKE metacharacters in a needle so user input can never
// act as a wildcard.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
