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

// StatsService defines the interface for statistics business logic
type StatsService interface {
	Report(ctx context.Context, user *models.User, dim models.Dimension, rng models.TimeRange) (*models.StatisticsReport, error)
	Summary(ctx context.Context, user *models.User, rng models.TimeRange) (*models.SummaryReport, error)
}

// RegionLister lists the known administrative units
type RegionLister interface {
	List(ctx context.Context) ([]models.Region, error)
}

// StatsHandler handles statistics HTTP requests
type StatsHandler struct {
	service StatsService
	regions RegionLister
	audit   AuditRecorder
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(service StatsService, regions RegionLister, audit AuditRecorder) *StatsHandler {
	return &StatsHandler{service: service, regions: regions, audit: audit}
}

// RegionResponse represents a region in the HTTP response
type RegionResponse struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RegisterRoutes registers all statistics routes with the chi router
func (h *StatsHandler) RegisterRoutes(router chi.Router) {
	router.Get("/reports", h.Report)          // GET /reports?dimension=month&from=&to=
	router.Get("/reports/summary", h.Summary) // GET /reports/summary?from=&to=
	router.Get("/regions", h.Regions)         // GET /regions
}

// Report builds a grouped count report for the requested dimension.
func (h *StatsHandler) Report(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	dim := models.Dimension(query.Get("dimension"))
	if dim == "" {
		pkghttp.WriteBadRequest(w, "query parameter 'dimension' is required")
		return
	}

	rng, err := parseRange(query.Get("from"), query.Get("to"))
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user := auth.GetUserFromContext(r)
	report, err := h.service.Report(r.Context(), user, dim, rng)
	if err != nil {
		h.audit.Record(r.Context(), user, models.AuditActionReport, false,
			models.AuditMetadata{"dimension": string(dim)})
		pkghttp.WriteDomainError(w, err)
		return
	}

	h.audit.Record(r.Context(), user, models.AuditActionReport, true, models.AuditMetadata{
		"dimension": string(dim),
		"groups":    len(report.Groups),
		"total":     report.Total,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

// Summary returns the headline totals for the caller's scope.
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	rng, err := parseRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	user := auth.GetUserFromContext(r)
	summary, err := h.service.Summary(r.Context(), user, rng)
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(summary)
}

// Regions lists the known administrative units.
func (h *StatsHandler) Regions(w http.ResponseWriter, r *http.Request) {
	regions, err := h.regions.List(r.Context())
	if err != nil {
		pkghttp.WriteDomainError(w, err)
		return
	}

	out := make([]RegionResponse, 0, len(regions))
	for _, reg := range regions {
		out = append(out, RegionResponse{Code: reg.Code, Name: reg.Name})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
