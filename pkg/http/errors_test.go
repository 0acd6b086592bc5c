package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quangtmn/visitreg/internal/models"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "bad_request", "invalid input")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bad_request", resp.Error)
	assert.Equal(t, "invalid input", resp.Message)
	assert.Empty(t, resp.Details)
}

func TestWriteErrorWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorWithDetails(rec, http.StatusBadRequest, "bad_request", "invalid input", "field entry_date")

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "field entry_date", resp.Details)
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{models.ErrNotFound, http.StatusNotFound, "not_found"},
		{models.ErrConflict, http.StatusConflict, "conflict"},
		{fmt.Errorf("%w: bad dimension", models.ErrBadRequest), http.StatusBadRequest, "bad_request"},
		{fmt.Errorf("%w: exit before entry", models.ErrValidation), http.StatusBadRequest, "bad_request"},
		{models.ErrForbidden, http.StatusForbidden, "forbidden"},
		{models.ErrQueryTooLarge, http.StatusRequestEntityTooLarge, "query_too_large"},
		{models.ErrStoreUnavailable, http.StatusServiceUnavailable, "store_unavailable"},
		{models.ErrInternalServer, http.StatusInternalServerError, "internal_error"},
		{fmt.Errorf("surprise"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteDomainError(rec, tt.err)

			assert.Equal(t, tt.status, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Error)
		})
	}
}
