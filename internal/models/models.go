package models

import "time"

// User lifecycle status values. A user record is never deleted, only
// transitioned between these two states.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// UserRecord is one reconciled identity from the Trackimo directory.
// The NIF is the sole identity key and is immutable once assigned.
type UserRecord struct {
	NIF         string `bson:"nif" json:"nif"`
	AccountID   string `bson:"account_id" json:"account_id"`
	Email       string `bson:"email" json:"email"`
	AccountName string `bson:"account_name" json:"account_name"`
	// Devices holds the serialized device list exactly as received from the
	// remote API. Field-level diffing happens on this serialized form.
	Devices string `bson:"devices" json:"devices"`
	// Plan is owned by the directory admin API and is never written by the
	// reconciliation engine; it is carried over unchanged on every sync.
	Plan                 string    `bson:"plan" json:"plan"`
	Status               string    `bson:"status" json:"status"`
	CreatedTimestamp     time.Time `bson:"created_timestamp" json:"created_timestamp"`
	LastUpdated          time.Time `bson:"last_updated" json:"last_updated"`
	DeactivatedTimestamp time.Time `bson:"deactivated_timestamp,omitempty" json:"deactivated_timestamp,omitempty"`
}

// DeviceRecord is a derived projection of one (user, device) pair. The set
// for a user is rebuilt wholesale on every sync; records have no independent
// lifecycle.
type DeviceRecord struct {
	Key         string    `bson:"key" json:"key"` // "<nif>_<deviceID>"
	NIF         string    `bson:"nif" json:"nif"`
	DeviceID    string    `bson:"device_id" json:"device_id"`
	Attributes  string    `bson:"attributes" json:"attributes"` // raw device JSON
	LastUpdated time.Time `bson:"last_updated" json:"last_updated"`
}

// ChangeLogEntry is an append-only audit record of one reconciliation (or
// admin) touch on a user. Immutable once written.
type ChangeLogEntry struct {
	PartitionKey string    `bson:"partition_key" json:"partition_key"` // "USER_<nif>"
	RowKey       string    `bson:"row_key" json:"row_key"`             // timestamp-derived, unique per entry
	NIF          string    `bson:"nif" json:"nif"`
	Timestamp    time.Time `bson:"timestamp" json:"timestamp"`
	Source       string    `bson:"source" json:"source"`
	Changes      []string  `bson:"changes" json:"changes"`
	ChangesCount int       `bson:"changes_count" json:"changes_count"`
}

// Sources recorded on ChangeLogEntry.Source.
const (
	SourceSync         = "SYNC_USERS"
	SourceDeactivation = "SYNC_USERS_DEACTIVATION"
	SourceAdmin        = "ADMIN"
)

// APICallLog is a write-once audit record of a remote fetch, including the
// raw response body for out-of-band reporting tools.
type APICallLog struct {
	PartitionKey  string    `bson:"partition_key" json:"partition_key"` // "SYNC_USERS"
	RowKey        string    `bson:"row_key" json:"row_key"`
	Timestamp     time.Time `bson:"timestamp" json:"timestamp"`
	Endpoint      string    `bson:"api_endpoint" json:"api_endpoint"`
	AccountID     string    `bson:"account_id" json:"account_id"`
	ResponseCount int       `bson:"response_count" json:"response_count"`
	RawResponse   string    `bson:"raw_response" json:"raw_response"`
}

// Per-run user outcome statuses reported by the engine.
const (
	OutcomeCreated           = "created"
	OutcomeUpdated           = "updated"
	OutcomeError             = "error"
	OutcomeDeactivated       = "deactivated"
	OutcomeErrorDeactivating = "error_deactivating"
)

// UserOutcome is one line of the per-run report.
type UserOutcome struct {
	NIF     string `json:"nif"`
	Plan    string `json:"plan,omitempty"`
	Devices int    `json:"devices,omitempty"`
	Changes int    `json:"changes,omitempty"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Summary aggregates counts over a run.
type Summary struct {
	TotalProcessed   int `json:"total_processed"`
	NewUsers         int `json:"new_users"`
	UpdatedUsers     int `json:"updated_users"`
	DeactivatedUsers int `json:"deactivated_users"`
	Errors           int `json:"errors"`
}

// SyncReport is the transient result of one reconciliation run. It is
// returned to the caller and never persisted.
type SyncReport struct {
	Processed   []UserOutcome `json:"users"`
	Deactivated []UserOutcome `json:"inactive_users"`
}

// Summarize computes the aggregate counts from the per-user outcome lists.
func (r *SyncReport) Summarize() Summary {
	s := Summary{TotalProcessed: len(r.Processed)}
	for _, u := range r.Processed {
		switch u.Status {
		case OutcomeCreated:
			s.NewUsers++
		case OutcomeUpdated:
			s.UpdatedUsers++
		case OutcomeError:
			s.Errors++
		}
	}
	for _, u := range r.Deactivated {
		if u.Status == OutcomeDeactivated {
			s.DeactivatedUsers++
		} else {
			s.Errors++
		}
	}
	return s
}
