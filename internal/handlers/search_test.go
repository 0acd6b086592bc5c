package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtmn/visitreg/internal/models"
)

func TestSearchHandler_Search_Found(t *testing.T) {
	entry := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	svc := &MockSearchService{
		SearchFunc: func(ctx context.Context, user *models.User, key string) (models.SearchResult, error) {
			assert.Equal(t, "E12345678", key)
			return models.SearchResult{
				Key: key, Kind: models.KeyKindPassport, Found: true,
				Records: []*models.Record{{
					ID: "r1", PassportNumber: "E12345678", FullName: "He Wuyang",
					EntryDate: entry, Purpose: models.PurposeLabor, RegionCode: "XA_A",
				}},
			}, nil
		},
	}
	audit := &recordedAudit{}
	h := NewSearchHandler(svc, audit)

	req := withUser(httptest.NewRequest(http.MethodGet, "/search?key=E12345678", nil), testAdmin())
	rec := doRequest(h.Search, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Found)
	assert.Equal(t, "passport", resp.Kind)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "2025-03-10", resp.Records[0].EntryDate)
	assert.Equal(t, []string{models.AuditActionSearch}, audit.actions)
	assert.Equal(t, []bool{true}, audit.success)
}

func TestSearchHandler_Search_AuditMasksKey(t *testing.T) {
	audit := &recordedAudit{}
	h := NewSearchHandler(&MockSearchService{}, audit)

	req := withUser(httptest.NewRequest(http.MethodGet, "/search?key=E12345678", nil), testAdmin())
	rec := doRequest(h.Search, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, audit.metadata, 1)
	// The raw key never reaches the audit trail.
	assert.Equal(t, "E1*******", audit.metadata[0]["key"])
}

func TestSearchHandler_Search_MissingKey(t *testing.T) {
	h := NewSearchHandler(&MockSearchService{}, &recordedAudit{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/search", nil), testAdmin())
	rec := doRequest(h.Search, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandler_Search_NotFoundIsOK(t *testing.T) {
	h := NewSearchHandler(&MockSearchService{}, &recordedAudit{})

	req := withUser(httptest.NewRequest(http.MethodGet, "/search?key=UNKNOWN1", nil), testAdmin())
	rec := doRequest(h.Search, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp SearchResultResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Found)
	assert.NotNil(t, resp.Records)
	assert.Empty(t, resp.Records)
}

func TestSearchHandler_BatchSearch_Keys(t *testing.T) {
	svc := &MockSearchService{
		SearchBatchFunc: func(ctx context.Context, user *models.User, keys []string) ([]models.SearchResult, int64, error) {
			assert.Equal(t, []string{"P123456", "UNKNOWN1"}, keys)
			return []models.SearchResult{
				{Key: "P123456", Kind: models.KeyKindPassport, Found: true,
					Records: []*models.Record{{ID: "r1", PassportNumber: "P123456"}}},
				models.NotFound("UNKNOWN1", models.KeyKindPassport),
			}, 7, nil
		},
	}
	audit := &recordedAudit{}
	h := NewSearchHandler(svc, audit)

	body := `{"keys": ["P123456", "UNKNOWN1"]}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/search/batch", strings.NewReader(body)), testAdmin())
	rec := doRequest(h.BatchSearch, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp BatchSearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Found)
	assert.Equal(t, 1, resp.Missing)
	assert.Equal(t, int64(7), resp.Version)
	require.Len(t, resp.Results, 2)
	assert.True(t, resp.Results[0].Found)
	assert.False(t, resp.Results[1].Found)
}

func TestSearchHandler_BatchSearch_TextIsSplit(t *testing.T) {
	svc := &MockSearchService{
		SearchBatchFunc: func(ctx context.Context, user *models.User, keys []string) ([]models.SearchResult, int64, error) {
			assert.Equal(t, []string{"P123456", "E9876543", "nguyen"}, keys)
			return []models.SearchResult{}, 1, nil
		},
	}
	h := NewSearchHandler(svc, &recordedAudit{})

	body := `{"text": "P123456, E9876543\nnguyen"}`
	req := withUser(httptest.NewRequest(http.MethodPost, "/search/batch", strings.NewReader(body)), testAdmin())
	rec := doRequest(h.BatchSearch, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSearchHandler_BatchSearch_EmptyBody(t *testing.T) {
	h := NewSearchHandler(&MockSearchService{}, &recordedAudit{})

	req := withUser(httptest.NewRequest(http.MethodPost, "/search/batch", strings.NewReader(`{}`)), testAdmin())
	rec := doRequest(h.BatchSearch, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchHandler_BatchSearch_OverBudget(t *testing.T) {
	svc := &MockSearchService{
		SearchBatchFunc: func(ctx context.Context, user *models.User, keys []string) ([]models.SearchResult, int64, error) {
			return nil, 0, models.ErrQueryTooLarge
		},
	}
	audit := &recordedAudit{}
	h := NewSearchHandler(svc, audit)

	req := withUser(httptest.NewRequest(http.MethodPost, "/search/batch",
		strings.NewReader(`{"keys": ["AAAAA1"]}`)), testAdmin())
	rec := doRequest(h.BatchSearch, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, []bool{false}, audit.success)
}
