package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petpath/tracksync/internal/models"
)

func TestMemoryUserRepository(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	// missing lookup is (nil, nil), not an error
	u, err := repo.FindByNIF(ctx, "123456789")
	require.NoError(t, err)
	assert.Nil(t, u)

	require.NoError(t, repo.Upsert(ctx, &models.UserRecord{NIF: "123456789", Status: models.StatusActive}))
	require.NoError(t, repo.Upsert(ctx, &models.UserRecord{NIF: "987654321", Status: models.StatusInactive}))

	u, err = repo.FindByNIF(ctx, "123456789")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, models.StatusActive, u.Status)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "123456789", active[0].NIF)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	// upsert replaces the whole record
	require.NoError(t, repo.Upsert(ctx, &models.UserRecord{NIF: "123456789", Status: models.StatusInactive}))
	u, _ = repo.FindByNIF(ctx, "123456789")
	assert.Equal(t, models.StatusInactive, u.Status)
}

func TestMemoryDeviceRepositoryOverwrite(t *testing.T) {
	repo := NewMemoryDeviceRepository()
	ctx := context.Background()

	require.NoError(t, repo.UpsertBatch(ctx, []models.DeviceRecord{
		{Key: "123456789_1", NIF: "123456789", DeviceID: "1"},
		{Key: "123456789_2", NIF: "123456789", DeviceID: "2"},
	}))
	require.NoError(t, repo.UpsertBatch(ctx, []models.DeviceRecord{
		{Key: "123456789_1", NIF: "123456789", DeviceID: "1", Attributes: `{"v":2}`},
	}))

	devs, err := repo.ListByNIF(ctx, "123456789")
	require.NoError(t, err)
	require.Len(t, devs, 2)
	assert.Equal(t, `{"v":2}`, devs[0].Attributes)
}

func TestMemoryChangeLogAppendOnly(t *testing.T) {
	repo := NewMemoryChangeLogRepository()
	ctx := context.Background()

	e := &models.ChangeLogEntry{NIF: "123456789", Source: models.SourceSync, Changes: []string{"x"}, ChangesCount: 1}
	require.NoError(t, repo.Append(ctx, e))
	require.NoError(t, repo.Append(ctx, e))

	got, err := repo.ListByNIF(ctx, "123456789")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Len(t, repo.All(), 2)
}

func TestAuditRowKey(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 30, 15, 123456000, time.UTC)
	assert.Equal(t, "20250301_093015_123456", AuditRowKey(ts))

	// distinct timestamps give distinct keys
	other := AuditRowKey(ts.Add(time.Microsecond))
	assert.NotEqual(t, AuditRowKey(ts), other)
}
