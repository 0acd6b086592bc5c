package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quangtmn/visitreg/internal/auth"
	"github.com/quangtmn/visitreg/internal/models"
	pkghttp "github.com/quangtmn/visitreg/pkg/http"
	pkglogger "github.com/quangtmn/visitreg/pkg/logger"
	"github.com/quangtmn/visitreg/pkg/textnorm"
)

// SearchService defines the interface for search business logic
type SearchService interface {
	Search(ctx context.Context, user *models.User, key string) (models.SearchResult, error)
	SearchBatch(ctx context.Context, user *models.User, keys []string) ([]models.SearchResult, int64, error)
}

// AuditRecorder appends operator actions to the audit trail
type AuditRecorder interface {
	Record(ctx context.Context, user *models.User, action string, success bool, metadata models.AuditMetadata)
}

// SearchHandler handles search HTTP requests
type SearchHandler struct {
	service SearchService
	audit   AuditRecorder
}

// NewSearchHandler creates a new SearchHandler
func NewSearchHandler(service SearchService, audit AuditRecorder) *SearchHandler {
	return &SearchHandler{service: service, audit: audit}
}

// BatchSearchRequest carries either a key list or free text to split.
type BatchSearchRequest struct {
	Keys []string `json:"keys"`
	Text string   `json:"text"`
}

// SearchResultResponse represents one search result in the HTTP response
type SearchResultResponse struct {
	Key     string            `json:"key"`
	Kind    string            `json:"kind"`
	Found   bool              `json:"found"`
	Records []*RecordResponse `json:"records"`
}

// BatchSearchResponse represents a batch search outcome
type BatchSearchResponse struct {
	Results []*SearchResultResponse `json:"results"`
	Found   int                     `json:"found"`
	Missing int                     `json:"missing"`
	Version int64                   `json:"store_version"`
}

func searchResultToResponse(res models.SearchResult) *SearchResultResponse {
	return &SearchResultResponse{
		Key:     res.Key,
		Kind:    string(res.Kind),
		Found:   res.Found,
		Records: recordsToResponses(res.Records),
	}
}

// RegisterRoutes registers all search routes with the chi router
func (h *SearchHandler) RegisterRoutes(router chi.Router) {
	router.Get("/search", h.Search)             // GET /search?key=...
	router.Post("/search/batch", h.BatchSearch) // POST /search/batch
}

// Search resolves a single lookup key from the query string.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		pkghttp.WriteBadRequest(w, "query parameter 'key' is required")
		return
	}

	// The audit trail must not become a second copy of the personal data it
	// protects; the looked-up key is stored masked.
	maskedKey := pkglogger.SanitizedPassport(key)

	user := auth.GetUserFromContext(r)
	result, err := h.service.Search(r.Context(), user, key)
	if err != nil {
		h.audit.Record(r.Context(), user, models.AuditActionSearch, false,
			models.AuditMetadata{"key": maskedKey})
		pkghttp.WriteDomainError(w, err)
		return
	}

	h.audit.Record(r.Context(), user, models.AuditActionSearch, true, models.AuditMetadata{
		"key":   maskedKey,
		"kind":  string(result.Kind),
		"found": result.Found,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(searchResultToResponse(result))
}

// BatchSearch resolves a whole list of keys at once. Keys can arrive as a
// JSON array or as free text that is split on the usual separators.
func (h *SearchHandler) BatchSearch(w http.ResponseWriter, r *http.Request) {
	var req BatchSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid JSON body")
		return
	}

	keys := req.Keys
	if len(keys) == 0 && req.Text != "" {
		keys = textnorm.SplitKeys(req.Text)
	}
	if len(keys) == 0 {
		pkghttp.WriteBadRequest(w, "either 'keys' or 'text' must be provided")
		return
	}

	user := auth.GetUserFromContext(r)
	results, version, err := h.service.SearchBatch(r.Context(), user, keys)
	if err != nil {
		h.audit.Record(r.Context(), user, models.AuditActionBatchSearch, false,
			models.AuditMetadata{"keys": len(keys)})
		pkghttp.WriteDomainError(w, err)
		return
	}

	resp := &BatchSearchResponse{
		Results: make([]*SearchResultResponse, 0, len(results)),
		Version: version,
	}
	for _, res := range results {
		resp.Results = append(resp.Results, searchResultToResponse(res))
		if res.Found {
			resp.Found++
		} else {
			resp.Missing++
		}
	}

	h.audit.Record(r.Context(), user, models.AuditActionBatchSearch, true, models.AuditMetadata{
		"keys":    len(keys),
		"found":   resp.Found,
		"missing": resp.Missing,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
