package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtmn/visitreg/internal/models"
)

func TestStatsHandler_Report(t *testing.T) {
	svc := &MockStatsService{
		ReportFunc: func(ctx context.Context, user *models.User, dim models.Dimension, rng models.TimeRange) (*models.StatisticsReport, error) {
			assert.Equal(t, models.DimMonth, dim)
			assert.Equal(t, "2025-01-01", rng.From.Format("2006-01-02"))
			return &models.StatisticsReport{
				Dimension: dim,
				Groups: []models.ReportGroup{
					{Key: "2025-01", Count: 3, CurrentlyResiding: 1},
					{Key: "2025-02", Count: 0},
				},
				Total:   3,
				Version: 4,
			}, nil
		},
	}
	audit := &recordedAudit{}
	h := NewStatsHandler(svc, nil, audit)

	req := withUser(httptest.NewRequest(http.MethodGet,
		"/reports?dimension=month&from=2025-01-01&to=2025-02-28", nil), testCommune("XA_A"))
	rec := doRequest(h.Report, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.StatisticsReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Total)
	assert.Len(t, resp.Groups, 2)
	assert.Equal(t, []string{models.AuditActionReport}, audit.actions)
}

func TestStatsHandler_Report_MissingDimension(t *testing.T) {
	h := NewStatsHandler(&MockStatsService{}, nil, &recordedAudit{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/reports", nil), testAdmin())
	rec := doRequest(h.Report, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsHandler_Report_BadDate(t *testing.T) {
	h := NewStatsHandler(&MockStatsService{}, nil, &recordedAudit{})

	req := withUser(httptest.NewRequest(http.MethodGet,
		"/reports?dimension=month&from=01-2025", nil), testAdmin())
	rec := doRequest(h.Report, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsHandler_Report_UnknownDimension(t *testing.T) {
	svc := &MockStatsService{
		ReportFunc: func(ctx context.Context, user *models.User, dim models.Dimension, rng models.TimeRange) (*models.StatisticsReport, error) {
			return nil, models.ErrBadRequest
		},
	}
	h := NewStatsHandler(svc, nil, &recordedAudit{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/reports?dimension=weekday", nil), testAdmin())
	rec := doRequest(h.Report, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsHandler_Summary(t *testing.T) {
	svc := &MockStatsService{
		SummaryFunc: func(ctx context.Context, user *models.User, rng models.TimeRange) (*models.SummaryReport, error) {
			return &models.SummaryReport{
				TotalRecords:      12,
				CurrentlyResiding: 5,
				ByPurpose:         map[string]int64{"labor": 10, "visit": 2},
				Version:           3,
			}, nil
		},
	}
	h := NewStatsHandler(svc, nil, &recordedAudit{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/reports/summary", nil), testAdmin())
	rec := doRequest(h.Summary, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.SummaryReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(12), resp.TotalRecords)
	assert.Equal(t, int64(10), resp.ByPurpose["labor"])
}

func TestStatsHandler_Regions(t *testing.T) {
	regions := &stubRegionLister{regions: []models.Region{
		{Code: "XA_A", Name: "Xã A"},
		{Code: "XA_B", Name: "Xã B"},
	}}
	h := NewStatsHandler(&MockStatsService{}, regions, &recordedAudit{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/regions", nil), testCommune("XA_A"))
	rec := doRequest(h.Regions, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []RegionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "XA_A", resp[0].Code)
}

type stubRegionLister struct {
	regions []models.Region
}

func (s *stubRegionLister) List(context.Context) ([]models.Region, error) {
	return s.regions, nil
}
