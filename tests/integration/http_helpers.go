package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/quangtmn/visitreg/internal/access"
	"github.com/quangtmn/visitreg/internal/auth"
	"github.com/quangtmn/visitreg/internal/cache"
	"github.com/quangtmn/visitreg/internal/database"
	"github.com/quangtmn/visitreg/internal/handlers"
	middlewareCustom "github.com/quangtmn/visitreg/internal/middleware"
	"github.com/quangtmn/visitreg/internal/models"
	"github.com/quangtmn/visitreg/internal/repositories"
	"github.com/quangtmn/visitreg/internal/routes"
	"github.com/quangtmn/visitreg/internal/services"
)

// TestJWTSecret signs tokens for test requests; in production tokens come
// from the external identity provider.
const TestJWTSecret = "test-secret-32-characters-long!!"

// TestServer wraps httptest.Server with the full application wiring over a
// real database.
type TestServer struct {
	Server *httptest.Server

	Records *repositories.RecordRepository
	Users   *repositories.UserRepository
	Audit   *repositories.AuditLogRepository

	logger *slog.Logger
}

// exportStore adapts the record repository's concrete iterator to the export
// service's cursor interface.
type exportStore struct {
	repo *repositories.RecordRepository
}

func (s exportStore) IterateRecords(ctx context.Context, scope access.Scope, rng models.TimeRange) (services.RecordCursor, error) {
	it, err := s.repo.IterateRecords(ctx, scope, rng)
	if err != nil {
		return nil, err
	}
	return it, nil
}

// NewTestServer wires repositories, services, handlers and routes the same
// way cmd/api does, on top of the given test database.
func NewTestServer(db *database.DB) *TestServer {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	recordRepo, statsRepo, regionRepo, userRepo, auditRepo := InitializeRepositories(db)

	queryCache := cache.NewMemory()

	searchService := services.NewSearchService(recordRepo, queryCache, 1000, logger)
	statsService := services.NewStatsService(statsRepo, regionRepo, recordRepo, queryCache, 500000, logger)
	importService := services.NewImportService(recordRepo, regionRepo, 1000, logger)
	exportService := services.NewExportService(exportStore{recordRepo}, logger)
	auditService := services.NewAuditService(auditRepo, logger)

	searchHandler := handlers.NewSearchHandler(searchService, auditService)
	statsHandler := handlers.NewStatsHandler(statsService, regionRepo, auditService)
	recordHandler := handlers.NewRecordHandler(importService, auditService)
	exportHandler := handlers.NewExportHandler(exportService, auditService)

	verifier := auth.NewTokenVerifier(TestJWTSecret)

	router := chi.NewRouter()
	router.Use(chiMiddleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: "test"}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(chiMiddleware.Recoverer)

	routes.RegisterRoutes(router, searchHandler, statsHandler, recordHandler, exportHandler, verifier, userRepo)

	return &TestServer{
		Server:  httptest.NewServer(router),
		Records: recordRepo,
		Users:   userRepo,
		Audit:   auditRepo,
		logger:  logger,
	}
}

// Close shuts down the HTTP server
func (ts *TestServer) Close() {
	ts.Server.Close()
}

// SignToken mints a token for the given user the way the identity provider
// would.
func SignToken(user *models.User) (string, error) {
	claims := &auth.Claims{
		Username:   user.Username,
		Role:       string(user.Role),
		RegionCode: user.RegionCode,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(15 * time.Minute)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(TestJWTSecret))
}

// DoRequest sends an authenticated JSON request to the test server and
// decodes the response body into out when out is non-nil.
func (ts *TestServer) DoRequest(ctx context.Context, user *models.User, method, path string, body any, out any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, ts.Server.URL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		token, err := SignToken(user)
		if err != nil {
			return nil, fmt.Errorf("failed to sign token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, err
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp, fmt.Errorf("failed to decode response %q: %w", raw, err)
		}
	}
	return resp, nil
}

// GetRaw fetches a path and returns the raw body, for non-JSON responses
// like the export streams.
func (ts *TestServer) GetRaw(ctx context.Context, user *models.User, path string) (*http.Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.Server.URL+path, nil)
	if err != nil {
		return nil, "", err
	}
	if user != nil {
		token, err := SignToken(user)
		if err != nil {
			return nil, "", fmt.Errorf("failed to sign token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Server.Client().Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	return resp, string(raw), err
}
