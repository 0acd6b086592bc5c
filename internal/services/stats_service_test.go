package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quangtmn/visitreg/internal/access"
	"github.com/quangtmn/visitreg/internal/cache"
	"github.com/quangtmn/visitreg/internal/models"
)

func rangeOf(from, to string) models.TimeRange {
	f, _ := time.Parse("2006-01-02", from)
	t, _ := time.Parse("2006-01-02", to)
	return models.TimeRange{From: f, To: t}
}

func newStatsService(stats *MockStatsStore, regions *MockRegionStore, c cache.Cache) *StatsService {
	return NewStatsService(stats, regions, &MockVersionSource{}, c, 1000, slog.Default())
}

func TestStatsService_Report_ZeroFillsMonths(t *testing.T) {
	stats := &MockStatsStore{
		GroupCountsFunc: func(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange) ([]models.ReportGroup, error) {
			return []models.ReportGroup{
				{Key: "2025-02", Count: 4, CurrentlyResiding: 2},
			}, nil
		},
	}

	svc := newStatsService(stats, &MockRegionStore{}, nil)

	report, err := svc.Report(context.Background(), NewTestAdmin("admin1"),
		models.DimMonth, rangeOf("2025-01-15", "2025-03-20"))

	assert.NoError(t, err)
	assert.Len(t, report.Groups, 3)
	assert.Equal(t, "2025-01", report.Groups[0].Key)
	assert.Equal(t, int64(0), report.Groups[0].Count)
	assert.Equal(t, "2025-02", report.Groups[1].Key)
	assert.Equal(t, int64(4), report.Groups[1].Count)
	assert.Equal(t, "2025-03", report.Groups[2].Key)
	assert.Equal(t, int64(0), report.Groups[2].Count)
	assert.Equal(t, int64(4), report.Total)
}

func TestStatsService_Report_RegionZeroFill(t *testing.T) {
	// The classic two-region case: region A has rows, region B has none;
	// both must be present.
	stats := &MockStatsStore{
		GroupCountsFunc: func(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange) ([]models.ReportGroup, error) {
			return []models.ReportGroup{{Key: "XA_A", Count: 2}}, nil
		},
	}
	regions := &MockRegionStore{
		ListFunc: func(ctx context.Context) ([]models.Region, error) {
			return []models.Region{{Code: "XA_A"}, {Code: "XA_B"}}, nil
		},
	}

	svc := newStatsService(stats, regions, nil)

	report, err := svc.Report(context.Background(), NewTestAdmin("admin1"),
		models.DimRegion, models.TimeRange{})

	assert.NoError(t, err)
	assert.Equal(t, []models.ReportGroup{
		{Key: "XA_A", Count: 2},
		{Key: "XA_B", Count: 0},
	}, report.Groups)
}

func TestStatsService_Report_CommuneRegionReportKeepsAllRegions(t *testing.T) {
	// A commune caller gets the same fixed region axis as an admin; the
	// scoped count query leaves every other region at zero.
	stats := &MockStatsStore{
		GroupCountsFunc: func(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange) ([]models.ReportGroup, error) {
			code, ok := scope.RegionCode()
			assert.True(t, ok)
			assert.Equal(t, "XA_A", code)
			return []models.ReportGroup{{Key: "XA_A", Count: 2}}, nil
		},
	}
	regions := &MockRegionStore{
		ListFunc: func(ctx context.Context) ([]models.Region, error) {
			return []models.Region{{Code: "XA_A"}, {Code: "XA_B"}}, nil
		},
	}

	svc := newStatsService(stats, regions, nil)

	report, err := svc.Report(context.Background(), NewTestCommune("c1", "XA_A"),
		models.DimRegion, models.TimeRange{})

	assert.NoError(t, err)
	assert.Equal(t, []models.ReportGroup{
		{Key: "XA_A", Count: 2},
		{Key: "XA_B", Count: 0},
	}, report.Groups)
	assert.Equal(t, int64(2), report.Total)
}

func TestStatsService_Report_PurposeZeroFill(t *testing.T) {
	stats := &MockStatsStore{
		GroupCountsFunc: func(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange) ([]models.ReportGroup, error) {
			return []models.ReportGroup{{Key: "labor", Count: 7}}, nil
		},
	}

	svc := newStatsService(stats, &MockRegionStore{}, nil)

	report, err := svc.Report(context.Background(), NewTestAdmin("admin1"),
		models.DimPurpose, models.TimeRange{})

	assert.NoError(t, err)
	assert.Len(t, report.Groups, len(models.Purposes))
	assert.Equal(t, "labor", report.Groups[0].Key)
	assert.Equal(t, int64(7), report.Groups[0].Count)
	for _, g := range report.Groups[1:] {
		assert.Equal(t, int64(0), g.Count)
	}
}

func TestStatsService_Report_EmptyRangeStillHasGroups(t *testing.T) {
	stats := &MockStatsStore{}

	svc := newStatsService(stats, &MockRegionStore{}, nil)

	report, err := svc.Report(context.Background(), NewTestAdmin("admin1"),
		models.DimQuarter, rangeOf("2024-11-01", "2025-05-31"))

	assert.NoError(t, err)
	assert.Equal(t, []models.ReportGroup{
		{Key: "2024-Q4"}, {Key: "2025-Q1"}, {Key: "2025-Q2"},
	}, report.Groups)
	assert.Equal(t, int64(0), report.Total)
}

func TestStatsService_Report_InvalidDimension(t *testing.T) {
	svc := newStatsService(&MockStatsStore{}, &MockRegionStore{}, nil)

	_, err := svc.Report(context.Background(), NewTestAdmin("admin1"),
		models.Dimension("weekday"), models.TimeRange{})

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestStatsService_Report_InvertedRange(t *testing.T) {
	svc := newStatsService(&MockStatsStore{}, &MockRegionStore{}, nil)

	_, err := svc.Report(context.Background(), NewTestAdmin("admin1"),
		models.DimMonth, rangeOf("2025-06-01", "2025-01-01"))

	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestStatsService_Report_OverRowBudget(t *testing.T) {
	stats := &MockStatsStore{
		CountScopedFunc: func(ctx context.Context, scope access.Scope, rng models.TimeRange) (int64, error) {
			return 5000, nil
		},
		GroupCountsFunc: func(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange) ([]models.ReportGroup, error) {
			t.Fatal("grouping must not run past the row budget")
			return nil, nil
		},
	}

	svc := NewStatsService(stats, &MockRegionStore{}, &MockVersionSource{}, nil, 1000, slog.Default())

	_, err := svc.Report(context.Background(), NewTestAdmin("admin1"),
		models.DimMonth, models.TimeRange{})

	assert.ErrorIs(t, err, models.ErrQueryTooLarge)
}

func TestStatsService_Report_UnknownRoleFailsClosed(t *testing.T) {
	stats := &MockStatsStore{
		GroupCountsFunc: func(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange) ([]models.ReportGroup, error) {
			t.Fatal("store must not be queried for a fail-closed scope")
			return nil, nil
		},
	}

	svc := newStatsService(stats, &MockRegionStore{}, nil)

	intruder := &models.User{ID: "x", Role: models.Role("superuser")}
	report, err := svc.Report(context.Background(), intruder,
		models.DimMonth, rangeOf("2025-01-01", "2025-02-28"))

	assert.NoError(t, err)
	assert.Equal(t, int64(0), report.Total)
	for _, g := range report.Groups {
		assert.Equal(t, int64(0), g.Count)
	}
}

func TestStatsService_Report_CachedUntilVersionBump(t *testing.T) {
	version := int64(3)
	calls := 0
	stats := &MockStatsStore{
		GroupCountsFunc: func(ctx context.Context, scope access.Scope, dim models.Dimension, rng models.TimeRange) ([]models.ReportGroup, error) {
			calls++
			return []models.ReportGroup{}, nil
		},
	}
	versions := &MockVersionSource{
		CurrentVersionFunc: func(ctx context.Context) (int64, error) { return version, nil },
	}

	svc := NewStatsService(stats, &MockRegionStore{}, versions, cache.NewMemory(), 1000, slog.Default())
	admin := NewTestAdmin("admin1")
	rng := rangeOf("2025-01-01", "2025-03-31")

	_, err := svc.Report(context.Background(), admin, models.DimMonth, rng)
	assert.NoError(t, err)
	_, err = svc.Report(context.Background(), admin, models.DimMonth, rng)
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)

	version = 4
	report, err := svc.Report(context.Background(), admin, models.DimMonth, rng)
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(4), report.Version)
}

func TestStatsService_Summary_EveryPurposePresent(t *testing.T) {
	stats := &MockStatsStore{
		SummaryFunc: func(ctx context.Context, scope access.Scope, rng models.TimeRange) (*models.SummaryReport, error) {
			return &models.SummaryReport{
				TotalRecords:      10,
				CurrentlyResiding: 6,
				ByPurpose:         map[string]int64{"labor": 8, "visit": 2},
			}, nil
		},
	}

	svc := newStatsService(stats, &MockRegionStore{}, nil)

	summary, err := svc.Summary(context.Background(), NewTestAdmin("admin1"), models.TimeRange{})

	assert.NoError(t, err)
	assert.Equal(t, int64(10), summary.TotalRecords)
	assert.Len(t, summary.ByPurpose, len(models.Purposes))
	assert.Equal(t, int64(8), summary.ByPurpose["labor"])
	assert.Equal(t, int64(0), summary.ByPurpose["marriage"])
}

func TestStatsService_Summary_OverRowBudget(t *testing.T) {
	stats := &MockStatsStore{
		CountScopedFunc: func(ctx context.Context, scope access.Scope, rng models.TimeRange) (int64, error) {
			return 5000, nil
		},
		SummaryFunc: func(ctx context.Context, scope access.Scope, rng models.TimeRange) (*models.SummaryReport, error) {
			t.Fatal("summary must not run past the row budget")
			return nil, nil
		},
	}

	svc := NewStatsService(stats, &MockRegionStore{}, &MockVersionSource{}, nil, 1000, slog.Default())

	_, err := svc.Summary(context.Background(), NewTestAdmin("admin1"), models.TimeRange{})

	assert.ErrorIs(t, err, models.ErrQueryTooLarge)
}

func TestTimeBuckets(t *testing.T) {
	tests := []struct {
		name string
		dim  models.Dimension
		rng  models.TimeRange
		want []string
	}{
		{"months across year end", models.DimMonth, rangeOf("2024-11-05", "2025-01-20"),
			[]string{"2024-11", "2024-12", "2025-01"}},
		{"single month", models.DimMonth, rangeOf("2025-02-01", "2025-02-28"),
			[]string{"2025-02"}},
		{"quarters", models.DimQuarter, rangeOf("2025-01-01", "2025-12-31"),
			[]string{"2025-Q1", "2025-Q2", "2025-Q3", "2025-Q4"}},
		{"years", models.DimYear, rangeOf("2023-06-01", "2025-06-01"),
			[]string{"2023", "2024", "2025"}},
		{"open range not enumerable", models.DimMonth, models.TimeRange{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timeBuckets(tt.dim, tt.rng))
		})
	}
}
