package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quangtmn/visitreg/internal/auth"
	"github.com/quangtmn/visitreg/internal/models"
	pkghttp "github.com/quangtmn/visitreg/pkg/http"
)

// RecordService defines the interface for record mutation business logic
type RecordService interface {
	InsertBatch(ctx context.Context, user *models.User, candidates []models.CandidateRecord, mode models.ImportMode, sourceFile string) (*models.BatchResult, error)
	UpdateRecord(ctx context.Context, user *models.User, id string, cand models.CandidateRecord) (*models.Record, int64, error)
	DeleteRecord(ctx context.Context, user *models.User, id string) (int64, error)
	PurgeRecord(ctx context.Context, user *models.User, id string) (int64, error)
	ApplyVerificationNotes(ctx context.Context, user *models.User, notes map[string]string) (int, int64, error)
}

// RecordHandler handles record mutation HTTP requests
type RecordHandler struct {
	service RecordService
	audit   AuditRecorder
}

// NewRecordHandler creates a new RecordHandler
func NewRecordHandler(service RecordService, audit AuditRecorder) *RecordHandler {
	return &RecordHandler{service: service, audit: audit}
}

// ImportRequest represents the request body for a record import
type ImportRequest struct {
	Mode       string             `json:"mode" validate:"omitempty,oneof=append replace"`
	SourceFile string             `json:"source_file"`
	Records    []CandidateRequest `json:"records" validate:"required"`
}

// VerificationNotesRequest bulk-updates notes keyed by passport number
type VerificationNotesRequest struct {
	Notes map[string]string `json:"notes" validate:"required"`
}

// UpdateRecordResponse wraps an updated record with the new store version
type UpdateRecordResponse struct {
	Record  *RecordResponse `json:"record"`
	Version int64           `json:"store_version"`
}

// RegisterRoutes registers the record mutation routes with the chi router.
// Purge and verification notes additionally require the admin role; the
// route layer stacks that middleware.
func (h *RecordHandler) RegisterRoutes(router chi.Router) {
	router.Post("/records/import", h.Import) // POST /records/import
	router.Put("/records/{id}", h.Update)    // PUT /records/{id}
	router.Delete("/records/{id}", h.Delete) // DELETE /records/{id}
}

// RegisterAdminRoutes registers the admin-only record routes
func (h *RecordHandler) RegisterAdminRoutes(router chi.Router) {
	router.Delete("/records/{id}/purge", h.Purge)                        // DELETE /records/{id}/purge
	router.Post("/records/verification-notes", h.ApplyVerificationNotes) // POST /records/verification-notes
}

// Import inserts a batch of candidate records.
func (h *RecordHandler) Import(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	mode := models.ImportMode(req.Mode)
	if req.Mode == "" {
		mode = models.ImportAppend
	}

	candidates := make([]models.CandidateRecord, 0, len(req.Records))
	for i := range req.Records {
		cand, err := req.Records[i].ToCandidate()
		if err != nil {
			pkghttp.WriteBadRequest(w, err.Error())
			return
		}
		candidates = append(candidates, cand)
	}

	user := auth.GetUserFromContext(r)
	result, err := h.service.InsertBatch(r.Context(), user, candidates, mode, req.SourceFile)
	if err != nil {
		h.audit.Record(r.Context(), user, models.AuditActionImport, false, models.AuditMetadata{
			"mode":    string(mode),
			"records": len(candidates),
		})
		pkghttp.WriteDomainError(w, err)
		return
	}

	h.audit.Record(r.Context(), user, models.AuditActionImport, true, models.AuditMetadata{
		"mode":        string(mode),
		"source_file": req.SourceFile,
		"accepted":    result.Accepted,
		"rejected":    len(result.Rejected),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(result)
}

// Update rewrites the editable fields of one record.
func (h *RecordHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req CandidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if err := ValidateRequest(&req); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	cand, err := req.ToCandidate()
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user := auth.GetUserFromContext(r)
	rec, version, err := h.service.UpdateRecord(r.Context(), user, id, cand)
	if err != nil {
		h.audit.Record(r.Context(), user, models.AuditActionUpdate, false,
			models.AuditMetadata{"record_id": id})
		pkghttp.WriteDomainError(w, err)
		return
	}

	h.audit.Record(r.Context(), user, models.AuditActionUpdate, true,
		models.AuditMetadata{"record_id": id})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(&UpdateRecordResponse{
		Record:  recordModelToResponse(rec),
		Version: version,
	})
}

// Delete soft-deletes one record.
func (h *RecordHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user := auth.GetUserFromContext(r)
	version, err := h.service.DeleteRecord(r.Context(), user, id)
	if err != nil {
		h.audit.Record(r.Context(), user, models.AuditActionDelete, false,
			models.AuditMetadata{"record_id": id})
		pkghttp.WriteDomainError(w, err)
		return
	}

	h.audit.Record(r.Context(), user, models.AuditActionDelete, true,
		models.AuditMetadata{"record_id": id})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{"store_version": version})
}

// Purge physically removes one record. Admin only.
func (h *RecordHandler) Purge(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	user := auth.GetUserFromContext(r)
	version, err := h.service.PurgeRecord(r.Context(), user, id)
	if err != nil {
		h.audit.Record(r.Context(), user, models.AuditActionPurge, false,
			models.AuditMetadata{"record_id": id})
		pkghttp.WriteDomainError(w, err)
		return
	}

	h.audit.Record(r.Context(), user, models.AuditActionPurge, true,
		models.AuditMetadata{"record_id": id})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]int64{"store_version": version})
}

// ApplyVerificationNotes bulk-updates record notes keyed by passport. Admin
// only.
func (h *RecordHandler) ApplyVerificationNotes(w http.ResponseWriter, r *http.Request) {
	var req VerificationNotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Notes) == 0 {
		pkghttp.WriteBadRequest(w, "'notes' must not be empty")
		return
	}

	user := auth.GetUserFromContext(r)
	updated, version, err := h.service.ApplyVerificationNotes(r.Context(), user, req.Notes)
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	h.audit.Record(r.Context(), user, models.AuditActionUpdate, true, models.AuditMetadata{
		"verification_notes": len(req.Notes),
		"updated":            updated,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"updated":       updated,
		"store_version": version,
	})
}
