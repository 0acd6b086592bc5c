package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quangtmn/visitreg/internal/auth"
	"github.com/quangtmn/visitreg/internal/models"
	"github.com/quangtmn/visitreg/internal/services"
	pkghttp "github.com/quangtmn/visitreg/pkg/http"
)

// ExportService defines the interface for export business logic
type ExportService interface {
	Records(ctx context.Context, user *models.User, rng models.TimeRange) (services.RecordCursor, error)
}

// ExportHandler streams scoped records as NDJSON or CSV. Serialization
// happens here, row by row off the cursor; the full result set is never held
// in memory.
type ExportHandler struct {
	service ExportService
	audit   AuditRecorder
}

// NewExportHandler creates a new ExportHandler
func NewExportHandler(service ExportService, audit AuditRecorder) *ExportHandler {
	return &ExportHandler{service: service, audit: audit}
}

// RegisterRoutes registers the export route with the chi router
func (h *ExportHandler) RegisterRoutes(router chi.Router) {
	router.Get("/export", h.Export) // GET /export?format=ndjson&from=&to=
}

var csvHeader = []string{
	"passport_number", "full_name", "nationality", "date_of_birth",
	"entry_date", "exit_date", "purpose", "region_code", "notes",
}

// Export streams every record the caller can see inside the range.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	format := query.Get("format")
	if format == "" {
		format = "ndjson"
	}
	if format != "ndjson" && format != "csv" {
		pkghttp.WriteBadRequest(w, "format must be 'ndjson' or 'csv'")
		return
	}

	rng, err := parseRange(query.Get("from"), query.Get("to"))
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user := auth.GetUserFromContext(r)
	cursor, err := h.service.Records(r.Context(), user, rng)
	if err != nil {
		h.audit.Record(r.Context(), user, models.AuditActionExport, false, nil)
		pkghttp.WriteDomainError(w, err)
		return
	}
	defer cursor.Close()

	var rows int64
	switch format {
	case "csv":
		rows, err = h.writeCSV(w, cursor)
	default:
		rows, err = h.writeNDJSON(w, cursor)
	}
	if err == nil {
		err = cursor.Err()
	}

	// Headers are already on the wire by now; a mid-stream failure can only
	// be recorded, not reported to the client as a status.
	h.audit.Record(r.Context(), user, models.AuditActionExport, err == nil, models.AuditMetadata{
		"format": format,
		"rows":   rows,
	})
}

func (h *ExportHandler) writeNDJSON(w http.ResponseWriter, cursor services.RecordCursor) (int64, error) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", `attachment; filename="records.ndjson"`)

	enc := json.NewEncoder(w)
	var rows int64
	for cursor.Next() {
		if err := enc.Encode(recordModelToResponse(cursor.Record())); err != nil {
			return rows, err
		}
		rows++
	}
	return rows, nil
}

func (h *ExportHandler) writeCSV(w http.ResponseWriter, cursor services.RecordCursor) (int64, error) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="records.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}

	var rows int64
	for cursor.Next() {
		rec := recordModelToResponse(cursor.Record())
		row := []string{
			rec.PassportNumber, rec.FullName, rec.Nationality, rec.DateOfBirth,
			rec.EntryDate, rec.ExitDate, rec.Purpose, rec.RegionCode, rec.Notes,
		}
		if err := cw.Write(row); err != nil {
			return rows, err
		}
		rows++
	}
	cw.Flush()
	return rows, cw.Error()
}
