package store

import (
	"context"
	"fmt"
	"time"

	"github.com/petpath/tracksync/internal/models"
)

// UserRepository persists the reconciled user directory. Lookups return
// (nil, nil) when the record does not exist: absence is normal control flow
// during reconciliation, not an error.
type UserRepository interface {
	FindByNIF(ctx context.Context, nif string) (*models.UserRecord, error)
	// Upsert creates-or-replaces the full record (never a partial update).
	Upsert(ctx context.Context, u *models.UserRecord) error
	ListActive(ctx context.Context) ([]models.UserRecord, error)
	List(ctx context.Context) ([]models.UserRecord, error)
}

// DeviceRepository persists the per-device projections. The set for a user
// is overwritten wholesale on each sync.
type DeviceRepository interface {
	UpsertBatch(ctx context.Context, recs []models.DeviceRecord) error
	ListByNIF(ctx context.Context, nif string) ([]models.DeviceRecord, error)
}

// ChangeLogRepository is the append-only audit trail. Entries are never
// rewritten.
type ChangeLogRepository interface {
	Append(ctx context.Context, e *models.ChangeLogEntry) error
	ListByNIF(ctx context.Context, nif string) ([]models.ChangeLogEntry, error)
}

// APICallRepository is the append-only log of remote fetches.
type APICallRepository interface {
	Append(ctx context.Context, e *models.APICallLog) error
}

// Stores bundles the four logical tables.
type Stores struct {
	Users    UserRepository
	Devices  DeviceRepository
	Changes  ChangeLogRepository
	APICalls APICallRepository
}

// AuditRowKey derives the sortable per-entry key used by the audit tables,
// microsecond-resolution so entries within one run stay distinct.
func AuditRowKey(t time.Time) string {
	return fmt.Sprintf("%s_%06d", t.UTC().Format("20060102_150405"), t.Nanosecond()/1000)
}
