package httpapi_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getailigned/dependency-service/internal/depservice"
	"github.com/getailigned/dependency-service/internal/events"
	"github.com/getailigned/dependency-service/internal/httpapi"
	"github.com/getailigned/dependency-service/internal/store/memorystore"
	"github.com/getailigned/dependency-service/internal/types"
)

func newTestServer(t *testing.T) (*httptest.Server, *memorystore.Store) {
	t.Helper()
	mem := memorystore.New()
	svc := depservice.New(mem, events.NoopPublisher{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := httpapi.NewMux(svc, httpapi.Options{
		Log:               slog.New(slog.NewTextHandler(io.Discard, nil)),
		CORSOrigins:       []string{"*"},
		RateLimitWindow:   time.Minute,
		RateLimitRequests: 1000,
	})
	return httptest.NewServer(mux), mem
}

func authedRequest(method, url string, body interface{}) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-a")
	req.Header.Set("X-User-ID", "user-1")
	return req, nil
}

func TestHealth_NoAuthRequired(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateEdge_RequiresPrincipal(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/dependencies", "application/json", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateEdge_Success(t *testing.T) {
	srv, mem := newTestServer(t)
	defer srv.Close()
	mem.SeedWorkItem(&types.WorkItem{ID: "a", TenantID: "tenant-a", Title: "A", Type: types.WorkItemTask})
	mem.SeedWorkItem(&types.WorkItem{ID: "b", TenantID: "tenant-a", Title: "B", Type: types.WorkItemTask})

	req, err := authedRequest(http.MethodPost, srv.URL+"/api/dependencies", map[string]interface{}{
		"from_id": "a", "to_id": "b", "dependency_type": "finish_to_start",
	})
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var decoded struct {
		Success bool `json:"success"`
		Data    struct {
			ID     string `json:"id"`
			FromID string `json:"from_id"`
			ToID   string `json:"to_id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.True(t, decoded.Success)
	assert.NotEmpty(t, decoded.Data.ID)
	assert.Equal(t, "a", decoded.Data.FromID)
	assert.Equal(t, "b", decoded.Data.ToID)
}

func TestCreateEdge_CycleRejected(t *testing.T) {
	srv, mem := newTestServer(t)
	defer srv.Close()
	mem.SeedWorkItem(&types.WorkItem{ID: "a", TenantID: "tenant-a", Title: "A", Type: types.WorkItemTask})
	mem.SeedWorkItem(&types.WorkItem{ID: "b", TenantID: "tenant-a", Title: "B", Type: types.WorkItemTask})

	req, err := authedRequest(http.MethodPost, srv.URL+"/api/dependencies", map[string]interface{}{
		"from_id": "a", "to_id": "b", "dependency_type": "finish_to_start",
	})
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req, err = authedRequest(http.MethodPost, srv.URL+"/api/dependencies", map[string]interface{}{
		"from_id": "b", "to_id": "a", "dependency_type": "finish_to_start",
	})
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var decoded struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, "CYCLE_DETECTED", decoded.Error)
}

func TestGetEdge_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	req, err := authedRequest(http.MethodGet, srv.URL+"/api/dependencies/missing", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGraphEndpoint(t *testing.T) {
	srv, mem := newTestServer(t)
	defer srv.Close()
	mem.SeedWorkItem(&types.WorkItem{ID: "a", TenantID: "tenant-a", Title: "A", Type: types.WorkItemTask})

	req, err := authedRequest(http.MethodGet, srv.URL+"/api/graph", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
