package http

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		setupMock  func(sqlmock.Sqlmock)
		checks     map[string]Check
		wantCode   int
		wantStatus string
	}{
		{
			name:       "healthy database",
			setupMock:  func(mock sqlmock.Sqlmock) { mock.ExpectPing() },
			wantCode:   http.StatusOK,
			wantStatus: statusHealthy,
		},
		{
			name:       "database down",
			setupMock:  func(mock sqlmock.Sqlmock) { mock.ExpectPing().WillReturnError(sql.ErrConnDone) },
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: statusUnhealthy,
		},
		{
			name:      "failing extra check only degrades",
			setupMock: func(mock sqlmock.Sqlmock) { mock.ExpectPing() },
			checks: map[string]Check{
				"llm": func(context.Context) error { return errors.New("circuit open") },
			},
			wantCode:   http.StatusOK,
			wantStatus: statusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.setupMock(mock)

			h := &HealthHandler{DB: db, Version: "test-version", Checks: tt.checks}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, "test-version", resp.Version)
			assert.Contains(t, resp.Checks, "database")
			for name := range tt.checks {
				assert.Equal(t, statusDegraded, resp.Checks[name].Status)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHealthHandler_NilDB(t *testing.T) {
	rec := httptest.NewRecorder()
	(&HealthHandler{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyHandler(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		mock.ExpectPing()

		rec := httptest.NewRecorder()
		(&ReadyHandler{DB: db}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ready"}`, rec.Body.String())
	})

	t.Run("not ready", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		rec := httptest.NewRecorder()
		(&ReadyHandler{DB: db}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"error":"database not ready"}`, rec.Body.String())
	})
}

func TestLiveHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	LiveHandler{}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
