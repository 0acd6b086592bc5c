package integration

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtmn/visitreg/internal/models"
)

func seedAdminUser(t *testing.T) *models.User {
	t.Helper()
	ctx := context.Background()
	user, err := SeedUser(ctx, testServer.Users, "admin", models.RoleAdmin, "")
	require.NoError(t, err)
	return user
}

func seedCommuneUser(t *testing.T, region string) *models.User {
	t.Helper()
	user, err := SeedUser(context.Background(), testServer.Users, "desk-"+strings.ToLower(region), models.RoleCommune, region)
	require.NoError(t, err)
	return user
}

func TestHTTPRejectsAnonymousRequests(t *testing.T) {
	ctx := resetDB(t)

	resp, err := testServer.DoRequest(ctx, nil, http.MethodGet, "/search?key=P123456", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTPImportThenBatchSearch(t *testing.T) {
	ctx := resetDB(t)
	admin := seedAdminUser(t)

	importBody := map[string]any{
		"mode":        "append",
		"source_file": "danh_sach_2025.xlsx",
		"records": []map[string]any{
			{
				"passport_number": "p123-456",
				"full_name":       "Nguyễn Văn An",
				"nationality":     "Lao",
				"entry_date":      "2025-01-10",
				"purpose":         "labor",
				"region_code":     RegionBaoYen,
			},
			{
				"passport_number": "AB9",
				"full_name":       "Too Short",
				"entry_date":      "2025-01-10",
				"region_code":     RegionBaoYen,
			},
		},
	}

	var importResult models.BatchResult
	resp, err := testServer.DoRequest(ctx, admin, http.MethodPost, "/records/import", importBody, &importResult)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, 1, importResult.Accepted)
	require.Len(t, importResult.Rejected, 1)
	assert.Equal(t, 1, importResult.Rejected[0].Index)
	assert.Equal(t, int64(1), importResult.Version)

	var searchResult struct {
		Results []struct {
			Key   string `json:"key"`
			Found bool   `json:"found"`
		} `json:"results"`
		Found   int   `json:"found"`
		Missing int   `json:"missing"`
		Version int64 `json:"store_version"`
	}
	resp, err = testServer.DoRequest(ctx, admin, http.MethodPost, "/search/batch",
		map[string]any{"keys": []string{"P123456", "UNKNOWN1"}}, &searchResult)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, searchResult.Results, 2)
	assert.True(t, searchResult.Results[0].Found)
	assert.False(t, searchResult.Results[1].Found)
	assert.Equal(t, 1, searchResult.Found)
	assert.Equal(t, 1, searchResult.Missing)
	assert.Equal(t, importResult.Version, searchResult.Version)
}

func TestHTTPBatchSearchFromFreeText(t *testing.T) {
	ctx := resetDB(t)
	admin := seedAdminUser(t)

	_, err := SeedVisits(ctx, testServer.Records,
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"))
	require.NoError(t, err)

	var result struct {
		Found   int `json:"found"`
		Missing int `json:"missing"`
	}
	resp, err := testServer.DoRequest(ctx, admin, http.MethodPost, "/search/batch",
		map[string]any{"text": "P123456, UNKNOWN1\nUNKNOWN2"}, &result)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, result.Found)
	assert.Equal(t, 2, result.Missing)
}

func TestHTTPReplaceModeForbiddenForCommune(t *testing.T) {
	ctx := resetDB(t)
	commune := seedCommuneUser(t, RegionBaoYen)

	body := map[string]any{
		"mode": "replace",
		"records": []map[string]any{{
			"passport_number": "P123456",
			"entry_date":      "2025-01-10",
			"region_code":     RegionBaoYen,
		}},
	}
	resp, err := testServer.DoRequest(ctx, commune, http.MethodPost, "/records/import", body, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHTTPPurgeRouteRequiresAdminRole(t *testing.T) {
	ctx := resetDB(t)
	commune := seedCommuneUser(t, RegionBaoYen)

	resp, err := testServer.DoRequest(ctx, commune, http.MethodDelete,
		"/records/00000000-0000-0000-0000-000000000000/purge", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestHTTPRegionReport(t *testing.T) {
	ctx := resetDB(t)
	admin := seedAdminUser(t)

	_, err := SeedVisits(ctx, testServer.Records,
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"),
		Visit("P234567", "Trần Thị Bình", RegionBaoYen, "2025-01-11"),
	)
	require.NoError(t, err)

	var report models.StatisticsReport
	resp, err := testServer.DoRequest(ctx, admin, http.MethodGet, "/reports?dimension=region", nil, &report)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, map[string]int64{
		RegionBaoYen:    2,
		RegionDongTrung: 0,
		RegionNaChieng:  0,
	}, groupCounts(report.Groups))
}

func TestHTTPReportRejectsUnknownDimension(t *testing.T) {
	ctx := resetDB(t)
	admin := seedAdminUser(t)

	resp, err := testServer.DoRequest(ctx, admin, http.MethodGet, "/reports?dimension=shoe_size", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHTTPExportNDJSON(t *testing.T) {
	ctx := resetDB(t)
	admin := seedAdminUser(t)

	_, err := SeedVisits(ctx, testServer.Records,
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"),
		Visit("P234567", "Trần Thị Bình", RegionDongTrung, "2025-01-11"),
	)
	require.NoError(t, err)

	resp, body, err := testServer.GetRaw(ctx, admin, "/export?format=ndjson")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	lines := strings.Split(strings.TrimSpace(body), "\n")
	assert.Len(t, lines, 2)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "{"), "each line is a JSON object: %s", line)
	}
}

func TestHTTPExportCSVScopedToCommune(t *testing.T) {
	ctx := resetDB(t)
	commune := seedCommuneUser(t, RegionBaoYen)

	_, err := SeedVisits(ctx, testServer.Records,
		Visit("P123456", "Nguyễn Văn An", RegionBaoYen, "2025-01-10"),
		Visit("P234567", "Trần Thị Bình", RegionDongTrung, "2025-01-11"),
	)
	require.NoError(t, err)

	resp, body, err := testServer.GetRaw(ctx, commune, "/export?format=csv")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	lines := strings.Split(strings.TrimSpace(body), "\n")
	require.Len(t, lines, 2, "header plus the one in-scope row")
	assert.Contains(t, lines[1], "P123456")
	assert.NotContains(t, body, "P234567")
}

func TestHTTPWritesAuditTrail(t *testing.T) {
	ctx := resetDB(t)
	admin := seedAdminUser(t)

	resp, err := testServer.DoRequest(ctx, admin, http.MethodGet, "/search?key=P123456", nil, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var count int
	err = testDB.Pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM audit_log WHERE action = $1 AND actor_id = $2 AND success",
		models.AuditActionSearch, admin.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
