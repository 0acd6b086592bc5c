package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/quangtmn/visitreg/internal/auth"
	"github.com/quangtmn/visitreg/internal/models"
	"github.com/quangtmn/visitreg/internal/services"
)

// MockSearchService implements SearchService for testing
type MockSearchService struct {
	SearchFunc      func(ctx context.Context, user *models.User, key string) (models.SearchResult, error)
	SearchBatchFunc func(ctx context.Context, user *models.User, keys []string) ([]models.SearchResult, int64, error)
}

func (m *MockSearchService) Search(ctx context.Context, user *models.User, key string) (models.SearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, user, key)
	}
	return models.NotFound(key, models.KeyKindPassport), nil
}

func (m *MockSearchService) SearchBatch(ctx context.Context, user *models.User, keys []string) ([]models.SearchResult, int64, error) {
	if m.SearchBatchFunc != nil {
		return m.SearchBatchFunc(ctx, user, keys)
	}
	results := make([]models.SearchResult, 0, len(keys))
	for _, key := range keys {
		results = append(results, models.NotFound(key, models.KeyKindPassport))
	}
	return results, 1, nil
}

// MockStatsService implements StatsService for testing
type MockStatsService struct {
	ReportFunc  func(ctx context.Context, user *models.User, dim models.Dimension, rng models.TimeRange) (*models.StatisticsReport, error)
	SummaryFunc func(ctx context.Context, user *models.User, rng models.TimeRange) (*models.SummaryReport, error)
}

func (m *MockStatsService) Report(ctx context.Context, user *models.User, dim models.Dimension, rng models.TimeRange) (*models.StatisticsReport, error) {
	if m.ReportFunc != nil {
		return m.ReportFunc(ctx, user, dim, rng)
	}
	return &models.StatisticsReport{Dimension: dim, Range: rng, Groups: []models.ReportGroup{}}, nil
}

func (m *MockStatsService) Summary(ctx context.Context, user *models.User, rng models.TimeRange) (*models.SummaryReport, error) {
	if m.SummaryFunc != nil {
		return m.SummaryFunc(ctx, user, rng)
	}
	return &models.SummaryReport{ByPurpose: map[string]int64{}}, nil
}

// MockRecordService implements RecordService for testing
type MockRecordService struct {
	InsertBatchFunc            func(ctx context.Context, user *models.User, candidates []models.CandidateRecord, mode models.ImportMode, sourceFile string) (*models.BatchResult, error)
	UpdateRecordFunc           func(ctx context.Context, user *models.User, id string, cand models.CandidateRecord) (*models.Record, int64, error)
	DeleteRecordFunc           func(ctx context.Context, user *models.User, id string) (int64, error)
	PurgeRecordFunc            func(ctx context.Context, user *models.User, id string) (int64, error)
	ApplyVerificationNotesFunc func(ctx context.Context, user *models.User, notes map[string]string) (int, int64, error)
}

func (m *MockRecordService) InsertBatch(ctx context.Context, user *models.User, candidates []models.CandidateRecord, mode models.ImportMode, sourceFile string) (*models.BatchResult, error) {
	if m.InsertBatchFunc != nil {
		return m.InsertBatchFunc(ctx, user, candidates, mode, sourceFile)
	}
	return &models.BatchResult{Accepted: len(candidates), Version: 1}, nil
}

func (m *MockRecordService) UpdateRecord(ctx context.Context, user *models.User, id string, cand models.CandidateRecord) (*models.Record, int64, error) {
	if m.UpdateRecordFunc != nil {
		return m.UpdateRecordFunc(ctx, user, id, cand)
	}
	return nil, 0, models.ErrNotFound
}

func (m *MockRecordService) DeleteRecord(ctx context.Context, user *models.User, id string) (int64, error) {
	if m.DeleteRecordFunc != nil {
		return m.DeleteRecordFunc(ctx, user, id)
	}
	return 0, models.ErrNotFound
}

func (m *MockRecordService) PurgeRecord(ctx context.Context, user *models.User, id string) (int64, error) {
	if m.PurgeRecordFunc != nil {
		return m.PurgeRecordFunc(ctx, user, id)
	}
	return 0, models.ErrNotFound
}

func (m *MockRecordService) ApplyVerificationNotes(ctx context.Context, user *models.User, notes map[string]string) (int, int64, error) {
	if m.ApplyVerificationNotesFunc != nil {
		return m.ApplyVerificationNotesFunc(ctx, user, notes)
	}
	return 0, 1, nil
}

// MockExportService implements ExportService for testing
type MockExportService struct {
	RecordsFunc func(ctx context.Context, user *models.User, rng models.TimeRange) (services.RecordCursor, error)
}

func (m *MockExportService) Records(ctx context.Context, user *models.User, rng models.TimeRange) (services.RecordCursor, error) {
	if m.RecordsFunc != nil {
		return m.RecordsFunc(ctx, user, rng)
	}
	return staticCursor(nil), nil
}

// staticCursor builds a RecordCursor over a fixed slice
func staticCursor(recs []*models.Record) services.RecordCursor {
	return &fixedCursor{records: recs}
}

type fixedCursor struct {
	records []*models.Record
	pos     int
}

func (c *fixedCursor) Next() bool {
	if c.pos >= len(c.records) {
		return false
	}
	c.pos++
	return true
}

func (c *fixedCursor) Record() *models.Record { return c.records[c.pos-1] }
func (c *fixedCursor) Err() error             { return nil }
func (c *fixedCursor) Close()                 {}

// recordedAudit captures audit calls for assertions
type recordedAudit struct {
	actions  []string
	success  []bool
	metadata []models.AuditMetadata
}

func (a *recordedAudit) Record(_ context.Context, _ *models.User, action string, success bool, metadata models.AuditMetadata) {
	a.actions = append(a.actions, action)
	a.success = append(a.success, success)
	a.metadata = append(a.metadata, metadata)
}

// withUser attaches a resolved user to the request context, standing in for
// the auth middleware.
func withUser(req *http.Request, user *models.User) *http.Request {
	ctx := context.WithValue(req.Context(), auth.UserContextKey, user)
	return req.WithContext(ctx)
}

func testAdmin() *models.User {
	return &models.User{ID: "admin1", Username: "admin1", Role: models.RoleAdmin}
}

func testCommune(region string) *models.User {
	return &models.User{ID: "c1", Username: "c1", Role: models.RoleCommune, RegionCode: region}
}

func doRequest(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}
