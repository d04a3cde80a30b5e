package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petpath/tracksync/internal/models"
	"github.com/petpath/tracksync/internal/store"
)

func usersRouter(stores *store.Stores) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewUsersHandler(stores).Register(r.Group("/api/v1"))
	return r
}

func seedUser(t *testing.T, stores *store.Stores, nif, plan, status string) {
	t.Helper()
	require.NoError(t, stores.Users.Upsert(context.Background(), &models.UserRecord{
		NIF: nif, Plan: plan, Status: status, Devices: "[]",
	}))
}

func TestListAndGetUsers(t *testing.T) {
	stores := store.NewMemoryStores()
	seedUser(t, stores, "123456789", "premium", models.StatusActive)
	seedUser(t, stores, "987654321", "", models.StatusInactive)
	r := usersRouter(stores)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/users", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.UserRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/users/123456789", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "premium")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/users/000000000", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdatePlanAuditsChange(t *testing.T) {
	stores := store.NewMemoryStores()
	seedUser(t, stores, "123456789", "", models.StatusActive)
	r := usersRouter(stores)

	req := httptest.NewRequest("PUT", "/api/v1/users/123456789", strings.NewReader(`{"plan":"premium"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	u, err := stores.Users.FindByNIF(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Equal(t, "premium", u.Plan)

	entries, err := stores.Changes.ListByNIF(context.Background(), "123456789")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.SourceAdmin, entries[0].Source)
	assert.Equal(t, "plan: '' → 'premium'", entries[0].Changes[0])
}

func TestUpdatePlanNoopWritesNoAudit(t *testing.T) {
	stores := store.NewMemoryStores()
	seedUser(t, stores, "123456789", "premium", models.StatusActive)
	r := usersRouter(stores)

	req := httptest.NewRequest("PUT", "/api/v1/users/123456789", strings.NewReader(`{"plan":"premium"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	entries, err := stores.Changes.ListByNIF(context.Background(), "123456789")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDeactivateIsSoftDelete(t *testing.T) {
	stores := store.NewMemoryStores()
	seedUser(t, stores, "123456789", "premium", models.StatusActive)
	r := usersRouter(stores)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("DELETE", "/api/v1/users/123456789", nil))
	require.Equal(t, http.StatusOK, w.Code)

	// the record still exists, transitioned to inactive
	u, err := stores.Users.FindByNIF(context.Background(), "123456789")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, models.StatusInactive, u.Status)
	assert.False(t, u.DeactivatedTimestamp.IsZero())
	assert.Equal(t, "premium", u.Plan)

	entries, _ := stores.Changes.ListByNIF(context.Background(), "123456789")
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Changes[0], "deactivated by admin")
}

func TestUserDevicesAndChangesEndpoints(t *testing.T) {
	stores := store.NewMemoryStores()
	seedUser(t, stores, "123456789", "", models.StatusActive)
	require.NoError(t, stores.Devices.UpsertBatch(context.Background(), []models.DeviceRecord{
		{Key: "123456789_1", NIF: "123456789", DeviceID: "1"},
	}))
	r := usersRouter(stores)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/users/123456789/devices", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "123456789_1")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/users/123456789/changes", nil))
	require.Equal(t, http.StatusOK, w.Code)
}
