package services

import (
	"context"
	"time"

	"github.com/quangtmn/visitreg/internal/access"
	"github.com/quangtmn/visitreg/internal/models"
)

// MockRecordStore implements RecordStore for testing
type MockRecordStore struct {
	InsertBatchFunc             func(ctx context.Context, recs []*models.Record, mode models.ImportMode) (int, map[string]bool, int64, error)
	UpdateFunc                  func(ctx context.Context, rec *models.Record) (int64, error)
	SoftDeleteFunc              func(ctx context.Context, id string) (int64, error)
	PurgeFunc                   func(ctx context.Context, id string) (int64, error)
	UpdateVerificationNotesFunc func(ctx context.Context, notes map[string]string) (int, int64, error)
	GetByIDFunc                 func(ctx context.Context, scope access.Scope, id string) (*models.Record, error)
}

func (m *MockRecordStore) InsertBatch(ctx context.Context, recs []*models.Record, mode models.ImportMode) (int, map[string]bool, int64, error) {
	if m.InsertBatchFunc != nil {
		return m.InsertBatchFunc(ctx, recs, mode)
	}
	return len(recs), map[string]bool{}, 1, nil
}

func (m *MockRecordStore) Update(ctx context.Context, rec *models.Record) (int64, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, rec)
	}
	return 1, nil
}

func (m *MockRecordStore) SoftDelete(ctx context.Context, id string) (int64, error) {
	if m.SoftDeleteFunc != nil {
		return m.SoftDeleteFunc(ctx, id)
	}
	return 1, nil
}

func (m *MockRecordStore) Purge(ctx context.Context, id string) (int64, error) {
	if m.PurgeFunc != nil {
		return m.PurgeFunc(ctx, id)
	}
	return 1, nil
}

func (m *MockRecordStore) UpdateVerificationNotes(ctx context.Context, notes map[string]string) (int, int64, error) {
	if m.UpdateVerificationNotesFunc != nil {
		return m.UpdateVerificationNotesFunc(ctx, notes)
	}
	return len(notes), 1, nil
}

func (m *MockRecordStore) GetByID(ctx context.Context, scope access.Scope, id string) (*models.Record, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, scope, id)
	}
	return nil, models.ErrNotFound
}

// MockSearchStore implements SearchStore for testing
type MockSearchStore struct {
	CurrentVersionFunc     func(ctx context.Context) (int64, error)
	FindByPassportsFunc    func(ctx context.Context, scope access.Scope, passports []string) ([]*models.Record, error)
	FindByNamePatternsFunc func(ctx context.Context, scope access.Scope, patterns []string) ([]*models.Record, error)
}

func (m *MockSearchStore) CurrentVersion(ctx context.Context) (int64, error) {
	if m.CurrentVersionFunc != nil {
		return m.CurrentVersionFunc(ctx)
	}
	return 1, nil
}

func (m *MockSearchStore) FindByPassports(ctx context.Context, scope access.Scope, passports []string) ([]*models.Record, error) {
	if m.FindByPassportsFunc != nil {
		return m.FindByPassportsFunc(ctx, scope, passports)
	}
	return []*models.Record{}, nil
}

func (m *MockSearchStore) FindByNamePatterns(ctx context.Context, scope access.Scope, patterns []string) ([]*models.Record, error) {
	if m.FindByNamePatternsFunc != nil {
		return m.FindByNamePatternsFunc(ctx, scope, patterns)
	}
	return []*models.Record{}, nil
}

// MockStatsStore implements StatsStore for testing
type MockStatsStore struct {
	CountScopedFunc func(ctx context.Context, scope access.Scope, rng models.TimeRange) (int64, error)
	GroupCountsFunc func(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange) ([]models.ReportGroup, error)
	SummaryFunc     func(ctx context.Context, scope access.Scope, rng models.TimeRange) (*models.SummaryReport, error)
}

func (m *MockStatsStore) CountScoped(ctx context.Context, scope access.Scope, rng models.TimeRange) (int64, error) {
	if m.CountScopedFunc != nil {
		return m.CountScopedFunc(ctx, scope, rng)
	}
	return 0, nil
}

func (m *MockStatsStore) GroupCounts(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange) ([]models.ReportGroup, error) {
	if m.GroupCountsFunc != nil {
		return m.GroupCountsFunc(ctx, scope, dim, rng)
	}
	return []models.ReportGroup{}, nil
}

func (m *MockStatsStore) Summary(ctx context.Context, scope access.Scope, rng models.TimeRange) (*models.SummaryReport, error) {
	if m.SummaryFunc != nil {
		return m.SummaryFunc(ctx, scope, rng)
	}
	return &models.SummaryReport{ByPurpose: map[string]int64{}}, nil
}

// MockRegionStore implements RegionStore for testing
type MockRegionStore struct {
	ListFunc       func(ctx context.Context) ([]models.Region, error)
	KnownCodesFunc func(ctx context.Context) (map[string]bool, error)
}

func (m *MockRegionStore) List(ctx context.Context) ([]models.Region, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return []models.Region{}, nil
}

func (m *MockRegionStore) KnownCodes(ctx context.Context) (map[string]bool, error) {
	if m.KnownCodesFunc != nil {
		return m.KnownCodesFunc(ctx)
	}
	return map[string]bool{}, nil
}

// MockVersionSource implements VersionSource for testing
type MockVersionSource struct {
	CurrentVersionFunc func(ctx context.Context) (int64, error)
}

func (m *MockVersionSource) CurrentVersion(ctx context.Context) (int64, error) {
	if m.CurrentVersionFunc != nil {
		return m.CurrentVersionFunc(ctx)
	}
	return 1, nil
}

// MockExportStore implements ExportStore for testing
type MockExportStore struct {
	IterateRecordsFunc func(ctx context.Context, scope access.Scope, rng models.TimeRange) (RecordCursor, error)
}

func (m *MockExportStore) IterateRecords(ctx context.Context, scope access.Scope, rng models.TimeRange) (RecordCursor, error) {
	if m.IterateRecordsFunc != nil {
		return m.IterateRecordsFunc(ctx, scope, rng)
	}
	return &sliceCursor{}, nil
}

// sliceCursor replays a fixed record slice as a RecordCursor.
type sliceCursor struct {
	records []*models.Record
	pos     int
	closed  bool
}

func (c *sliceCursor) Next() bool {
	if c.pos >= len(c.records) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Record() *models.Record { return c.records[c.pos-1] }
func (c *sliceCursor) Err() error             { return nil }
func (c *sliceCursor) Close()                 { c.closed = true }

// NewTestAdmin creates an admin user for testing
func NewTestAdmin(id string) *models.User {
	return &models.User{ID: id, Username: id, Role: models.RoleAdmin}
}

// NewTestCommune creates a commune user scoped to one region for testing
func NewTestCommune(id, regionCode string) *models.User {
	return &models.User{ID: id, Username: id, Role: models.RoleCommune, RegionCode: regionCode}
}

// NewTestRecord creates a stored record for testing
func NewTestRecord(passport, nameNorm, regionCode string, entry time.Time) *models.Record {
	return &models.Record{
		ID:             passport + "-" + entry.Format("20060102"),
		PassportNumber: passport,
		FullName:       nameNorm,
		NameNormalized: nameNorm,
		Nationality:    "china",
		EntryDate:      entry,
		Purpose:        models.PurposeLabor,
		RegionCode:     regionCode,
	}
}

// MockAuditStore implements AuditStore for testing
type MockAuditStore struct {
	InsertFunc          func(ctx context.Context, entry *models.AuditLog) error
	DeleteOlderThanFunc func(ctx context.Context, cutoff time.Time) (int64, error)
}

func (m *MockAuditStore) Insert(ctx context.Context, entry *models.AuditLog) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	return nil
}

func (m *MockAuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteOlderThanFunc != nil {
		return m.DeleteOlderThanFunc(ctx, cutoff)
	}
	return 0, nil
}
