package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingbora/easy-law-sub001/pkg/common/config"
	"github.com/kingbora/easy-law-sub001/pkg/models"
	"github.com/kingbora/easy-law-sub001/pkg/repository/memory"
	"github.com/kingbora/easy-law-sub001/pkg/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, authCfg config.AuthConfig) *Server {
	t.Helper()
	repo := memory.NewCaseRepository()
	svc, err := services.NewCaseService(services.ServiceConfig{}, repo, nil)
	require.NoError(t, err)

	cfg := config.APIConfig{
		BaseURL:     "/api/v1",
		Auth:        authCfg,
		LogRequests: false,
	}
	return NewServer(cfg, svc, NewHealthChecker(nil), nil, nil)
}

func doJSON(t *testing.T, s *Server, method, path string, tenantID uuid.UUID, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())
	req.Header.Set("X-Actor-ID", "editor-a")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func createViaAPI(t *testing.T, s *Server, tenantID uuid.UUID) models.Case {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/cases", tenantID, map[string]interface{}{
		"case_number": "2026-" + uuid.NewString()[:8],
		"title":       "Meyer v. Hartmann",
		"status":      "open",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Case
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, `"0"`, w.Header().Get("ETag"))
	return created
}

func updateBody(baseVersion int, snapshot, payload map[string]interface{}, dirty []string, mode string) map[string]interface{} {
	meta := map[string]interface{}{
		"baseVersion":  baseVersion,
		"baseSnapshot": snapshot,
		"dirtyFields":  dirty,
	}
	if mode != "" {
		meta["resolveMode"] = mode
	}
	return map[string]interface{}{"payload": payload, "meta": meta}
}

func TestCaseAPI_UpdateProtocol(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{RequireAuth: false})
	tenantID := uuid.New()
	created := createViaAPI(t, s, tenantID)
	casePath := fmt.Sprintf("/api/v1/cases/%s", created.ID)

	snapshot := map[string]interface{}{"status": "open", "assignedLawyerId": nil}

	// Clean write at the current version commits and bumps the ETag.
	w := doJSON(t, s, http.MethodPut, casePath, tenantID,
		updateBody(0, snapshot, map[string]interface{}{"status": "closed"}, []string{"status"}, ""))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, `"1"`, w.Header().Get("ETag"))

	// Stale disjoint edit: 409 with mergeable details and a diff.
	w = doJSON(t, s, http.MethodPut, casePath, tenantID,
		updateBody(0, snapshot, map[string]interface{}{"assignedLawyerId": "lawyer-7"}, []string{"assignedLawyerId"}, ""))
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	var conflictResp struct {
		Conflict models.ConflictDetails `json:"conflict"`
		Diff     struct {
			SummaryLabel string `json:"summaryLabel"`
			Rows         []struct {
				FieldLabel    string `json:"fieldLabel"`
				IsConflicting bool   `json:"isConflicting"`
			} `json:"rows"`
		} `json:"diff"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conflictResp))
	assert.Equal(t, models.ConflictMergeable, conflictResp.Conflict.Type)
	assert.Equal(t, 1, conflictResp.Conflict.LatestVersion)
	assert.NotEmpty(t, conflictResp.Diff.Rows)

	// Merge retry of the same request commits and preserves the remote edit.
	w = doJSON(t, s, http.MethodPut, casePath, tenantID,
		updateBody(0, snapshot, map[string]interface{}{"assignedLawyerId": "lawyer-7"}, []string{"assignedLawyerId"}, "merge"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var merged models.Case
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &merged))
	assert.Equal(t, 2, merged.Version)
	assert.Equal(t, models.CaseStatusClosed, merged.Status)
	require.NotNil(t, merged.AssignedLawyerID)
	assert.Equal(t, "lawyer-7", *merged.AssignedLawyerID)

	// Overlapping edit stays hard even with merge requested.
	w = doJSON(t, s, http.MethodPut, casePath, tenantID,
		updateBody(0, snapshot, map[string]interface{}{"status": "void"}, []string{"status"}, "merge"))
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &conflictResp))
	assert.Equal(t, models.ConflictHard, conflictResp.Conflict.Type)
	assert.Equal(t, []string{"status"}, conflictResp.Conflict.ConflictingFields)

	// The journal recorded both commits, newest first, merge flagged.
	w = doJSON(t, s, http.MethodGet, casePath+"/changes", tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var changesResp struct {
		Changes []models.CaseChange `json:"changes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &changesResp))
	require.Len(t, changesResp.Changes, 2)
	assert.Equal(t, 2, changesResp.Changes[0].Version)
	assert.True(t, changesResp.Changes[0].Merged)
	assert.Equal(t, 1, changesResp.Changes[1].Version)
	assert.False(t, changesResp.Changes[1].Merged)
}

func TestCaseAPI_UpdateErrorStatuses(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{RequireAuth: false})
	tenantID := uuid.New()
	created := createViaAPI(t, s, tenantID)
	casePath := fmt.Sprintf("/api/v1/cases/%s", created.ID)
	snapshot := map[string]interface{}{"status": "open"}

	t.Run("missing meta is 412", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPut, casePath, tenantID,
			map[string]interface{}{"payload": map[string]interface{}{"status": "closed"}})
		assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	})

	t.Run("missing baseVersion is 412", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPut, casePath, tenantID, map[string]interface{}{
			"payload": map[string]interface{}{"status": "closed"},
			"meta":    map[string]interface{}{"baseSnapshot": snapshot, "dirtyFields": []string{"status"}},
		})
		assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	})

	t.Run("invalid payload is 400 with fields", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPut, casePath, tenantID,
			updateBody(0, snapshot, map[string]interface{}{"status": "reopened"}, []string{"status"}, ""))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "fields")
	})

	t.Run("unknown case is 404", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPut, fmt.Sprintf("/api/v1/cases/%s", uuid.New()), tenantID,
			updateBody(0, snapshot, map[string]interface{}{"status": "closed"}, []string{"status"}, ""))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("malformed id is 400", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPut, "/api/v1/cases/not-a-uuid", tenantID,
			updateBody(0, snapshot, map[string]interface{}{"status": "closed"}, []string{"status"}, ""))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCaseAPI_TenantIsolation(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{RequireAuth: false})
	tenantA := uuid.New()
	tenantB := uuid.New()
	created := createViaAPI(t, s, tenantA)

	// Another tenant cannot see or touch the case.
	w := doJSON(t, s, http.MethodGet, fmt.Sprintf("/api/v1/cases/%s", created.ID), tenantB, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodDelete, fmt.Sprintf("/api/v1/cases/%s", created.ID), tenantB, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/v1/cases", tenantB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Cases []models.Case `json:"cases"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Empty(t, listResp.Cases)
}

func TestCaseAPI_ListPagination(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{RequireAuth: false})
	tenantID := uuid.New()
	for i := 0; i < 3; i++ {
		createViaAPI(t, s, tenantID)
	}

	w := doJSON(t, s, http.MethodGet, "/api/v1/cases?limit=2", tenantID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Cases    []models.Case `json:"cases"`
		PageInfo struct {
			TotalCount int64 `json:"total_count"`
			HasMore    bool  `json:"has_more"`
		} `json:"page_info"`
		Links map[string]string `json:"_links"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Len(t, listResp.Cases, 2)
	assert.Equal(t, int64(3), listResp.PageInfo.TotalCount)
	assert.True(t, listResp.PageInfo.HasMore)
	assert.Contains(t, listResp.Links["next"], "offset=2")
}

func TestAuthMiddleware(t *testing.T) {
	tenantID := uuid.New()
	secret := "test-secret"
	authCfg := config.AuthConfig{
		RequireAuth: true,
		JWTSecret:   secret,
		APIKeys: map[string]config.APIKeySettings{
			"valid-key": {TenantID: tenantID.String(), UserID: "key-user", Role: "admin"},
		},
	}
	s := newTestServer(t, authCfg)

	request := func(configure func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/cases", nil)
		configure(req)
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, req)
		return w
	}

	t.Run("no credentials", func(t *testing.T) {
		w := request(func(r *http.Request) {})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid api key", func(t *testing.T) {
		w := request(func(r *http.Request) { r.Header.Set("X-API-Key", "valid-key") })
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown api key", func(t *testing.T) {
		w := request(func(r *http.Request) { r.Header.Set("X-API-Key", "wrong-key") })
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("valid jwt", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			TenantID: tenantID.String(),
			UserID:   "lawyer-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)

		w := request(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+signed) })
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("jwt signed with wrong secret", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			TenantID: tenantID.String(),
			UserID:   "lawyer-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte("other-secret"))
		require.NoError(t, err)

		w := request(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+signed) })
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired jwt", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			TenantID: tenantID.String(),
			UserID:   "lawyer-1",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte(secret))
		require.NoError(t, err)

		w := request(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+signed) })
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, config.AuthConfig{RequireAuth: true})

	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, "probe %s must not require auth", path)
	}
}
