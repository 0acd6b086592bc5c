package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/quangtmn/visitreg/internal/auth"
	"github.com/quangtmn/visitreg/internal/handlers"
	"github.com/quangtmn/visitreg/internal/models"
	"github.com/quangtmn/visitreg/internal/repositories"
)

// RegisterRoutes registers all application routes. Every data route sits
// behind token authentication; there are no anonymous reads.
func RegisterRoutes(
	router chi.Router,
	searchHandler *handlers.SearchHandler,
	statsHandler *handlers.StatsHandler,
	recordHandler *handlers.RecordHandler,
	exportHandler *handlers.ExportHandler,
	verifier *auth.TokenVerifier,
	userRepo *repositories.UserRepository,
) {
	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(verifier, userRepo))

		// Lookups are interactive; imports and exports are heavyweight and
		// get a tighter per-operator budget.
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(120, time.Minute))
			searchHandler.RegisterRoutes(r)
			statsHandler.RegisterRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(10, time.Minute))
			recordHandler.RegisterRoutes(r)
			exportHandler.RegisterRoutes(r)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(10, time.Minute))
			r.Use(auth.RequireRole(models.RoleAdmin))
			recordHandler.RegisterAdminRoutes(r)
		})
	})
}
