package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"confd/internal/server/api/middleware"
	"confd/internal/server/api/response"
	"confd/internal/server/config"
	"confd/internal/server/service"
	"confd/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Runtime: config.RuntimeConfig{
			Seed: map[string]string{
				"DATABASE_URL": "postgresql://db.internal:5432/app",
				"JWT_SECRET":   "0123456789abcdef0123456789abcdef",
				"APP_NAME":     "confd",
			},
		},
		Reload: config.ReloadConfig{Timeout: time.Second},
	}

	logger := zaptest.NewLogger(t)
	svc, err := service.NewService(cfg, storage.NewMemoryStorage(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop() })

	engine := gin.New()
	m := middleware.New(cfg, logger)
	engine.Use(m.RequestID(), m.Actor())
	NewAPI(svc, logger).RegisterRoutes(engine.Group("/api/v1"))
	return engine
}

func doRequest(t *testing.T, engine *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, *response.Response) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "tester")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	resp := &response.Response{}
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), resp))
	}
	return w, resp
}

func TestConfigEndpoints(t *testing.T) {
	engine := newTestRouter(t)

	w, resp := doRequest(t, engine, http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := resp.Data.(map[string]any)
	assert.EqualValues(t, 3, data["count"])
	values := data["config"].(map[string]any)
	assert.Equal(t, "0123************************cdef", values["JWT_SECRET"])

	w, _ = doRequest(t, engine, http.MethodPut, "/api/v1/config/LOG_LEVEL",
		gin.H{"value": "debug"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = doRequest(t, engine, http.MethodGet, "/api/v1/config/LOG_LEVEL", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "debug", resp.Data.(map[string]any)["value"])

	w, _ = doRequest(t, engine, http.MethodGet, "/api/v1/config/MISSING", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = doRequest(t, engine, http.MethodDelete, "/api/v1/config/LOG_LEVEL", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, engine, http.MethodDelete, "/api/v1/config/DATABASE_URL", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestConfigValidationRejected(t *testing.T) {
	engine := newTestRouter(t)

	w, resp := doRequest(t, engine, http.MethodPut, "/api/v1/config/SERVER_PORT",
		gin.H{"value": "not-a-number"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, resp.Error, "SERVER_PORT")

	w, resp = doRequest(t, engine, http.MethodPut, "/api/v1/config/lower-case",
		gin.H{"value": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Error, "key must be an uppercase key name")
}

func TestVersionEndpoints(t *testing.T) {
	engine := newTestRouter(t)

	w, resp := doRequest(t, engine, http.MethodPost, "/api/v1/versions",
		gin.H{"description": "baseline", "tags": []string{"release"}})
	require.Equal(t, http.StatusCreated, w.Code)
	versionID := resp.Data.(map[string]any)["id"].(string)
	require.NotEmpty(t, versionID)

	w, _ = doRequest(t, engine, http.MethodPut, "/api/v1/config/APP_NAME",
		gin.H{"value": "confd2"})
	require.Equal(t, http.StatusOK, w.Code)

	w, resp = doRequest(t, engine, http.MethodGet, "/api/v1/versions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, resp.Data.(map[string]any)["count"])

	w, resp = doRequest(t, engine, http.MethodGet, "/api/v1/versions/"+versionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := resp.Data.(map[string]any)
	assert.Equal(t, "confd", snap["config"].(map[string]any)["APP_NAME"])

	w, _ = doRequest(t, engine, http.MethodGet, "/api/v1/versions/unknown", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, resp = doRequest(t, engine, http.MethodPost,
		"/api/v1/versions/"+versionID+"/rollback", gin.H{})
	require.Equal(t, http.StatusOK, w.Code)
	result := resp.Data.(map[string]any)
	assert.Equal(t, versionID, result["restored_id"])

	w, resp = doRequest(t, engine, http.MethodGet, "/api/v1/config/APP_NAME", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "confd", resp.Data.(map[string]any)["value"])
}

func TestCompareVersions(t *testing.T) {
	engine := newTestRouter(t)

	_, resp := doRequest(t, engine, http.MethodPost, "/api/v1/versions",
		gin.H{"description": "first"})
	v1ID := resp.Data.(map[string]any)["id"].(string)

	w, _ := doRequest(t, engine, http.MethodPut, "/api/v1/config/APP_NAME",
		gin.H{"value": "confd2"})
	require.Equal(t, http.StatusOK, w.Code)

	_, resp = doRequest(t, engine, http.MethodPost, "/api/v1/versions",
		gin.H{"description": "second"})
	v2ID := resp.Data.(map[string]any)["id"].(string)

	w, resp = doRequest(t, engine, http.MethodGet,
		"/api/v1/versions/compare?from="+v1ID+"&to="+v2ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	diff := resp.Data.(map[string]any)["diff"].([]any)
	require.Len(t, diff, 3)

	w, _ = doRequest(t, engine, http.MethodGet, "/api/v1/versions/compare?from="+v1ID, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditEndpoints(t *testing.T) {
	engine := newTestRouter(t)

	w, _ := doRequest(t, engine, http.MethodPut, "/api/v1/config/A", gin.H{"value": "1"})
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = doRequest(t, engine, http.MethodGet, "/api/v1/config/A", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, resp := doRequest(t, engine, http.MethodGet, "/api/v1/audit?action=update", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, resp.Data.(map[string]any)["count"])

	w, resp = doRequest(t, engine, http.MethodGet, "/api/v1/audit/statistics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := resp.Data.(map[string]any)
	assert.EqualValues(t, 2, stats["total_entries"])
}

func TestAuditExport(t *testing.T) {
	engine := newTestRouter(t)

	w, _ := doRequest(t, engine, http.MethodPut, "/api/v1/config/A", gin.H{"value": "1"})
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = doRequest(t, engine, http.MethodGet, "/api/v1/audit/export?format=csv", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "audit_logs_")
	assert.Contains(t, w.Body.String(), "sequence,timestamp,action")

	w, resp := doRequest(t, engine, http.MethodGet, "/api/v1/audit/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, resp.Error, "format must be json or csv")
}

func TestReloadAndHealth(t *testing.T) {
	engine := newTestRouter(t)

	w, resp := doRequest(t, engine, http.MethodPost, "/api/v1/reload", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, resp.Data.(map[string]any)["notified"])

	w, resp = doRequest(t, engine, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, resp.Data.(map[string]any)["healthy"])
}
