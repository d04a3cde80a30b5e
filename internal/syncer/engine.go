package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/petpath/tracksync/internal/devices"
	"github.com/petpath/tracksync/internal/identity"
	"github.com/petpath/tracksync/internal/models"
	"github.com/petpath/tracksync/internal/store"
	"github.com/petpath/tracksync/internal/trackimo"
	"github.com/petpath/tracksync/pkg/logger"
	"github.com/petpath/tracksync/pkg/metrics"
)

// RemoteAPI is the slice of the Trackimo client the engine depends on.
type RemoteAPI interface {
	Login(ctx context.Context) (string, error)
	UserDetails(ctx context.Context, accessToken string) (*trackimo.UserDetails, error)
	Descendants(ctx context.Context, accessToken string, accountID int64) (*trackimo.DescendantsResponse, []byte, error)
}

// Archiver stores raw snapshot payloads out-of-band (blob archive). Optional.
type Archiver interface {
	Store(ctx context.Context, key string, payload []byte) error
}

// Engine runs one full reconciliation:
//
//	FETCH → BUILD_CANDIDATES → PER_USER_RECONCILE → DEACTIVATE_ABSENT → REPORT
//
// Fetch-stage failures abort the run; per-user failures are isolated into
// error outcomes so one bad record never blocks the rest. Runs are strictly
// sequential and single-writer: concurrency control belongs to the caller.
type Engine struct {
	api     RemoteAPI
	stores  *store.Stores
	archive Archiver
	now     func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithArchiver enables raw snapshot archiving.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archive = a }
}

// WithClock overrides the engine clock (tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func New(api RemoteAPI, stores *store.Stores, opts ...Option) *Engine {
	e := &Engine{
		api:    api,
		stores: stores,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Run executes one sync. The returned error is non-nil only for fetch-stage
// failures (trackimo.ErrAuthFailed for the handshake, anything else for
// precondition fetches); per-user failures land in the report instead.
func (e *Engine) Run(ctx context.Context) (*models.SyncReport, error) {
	started := e.now()

	token, err := e.api.Login(ctx)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("auth_failed").Inc()
		return nil, fmt.Errorf("login: %w", err)
	}

	details, err := e.api.UserDetails(ctx, token)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("fetch_failed").Inc()
		return nil, fmt.Errorf("user details: %w", err)
	}

	snapshot, raw, err := e.api.Descendants(ctx, token, details.AccountID)
	if err != nil {
		metrics.SyncRuns.WithLabelValues("fetch_failed").Inc()
		return nil, fmt.Errorf("descendants: %w", err)
	}

	// the raw fetch is audited unconditionally once the fetch succeeded
	if err := e.logAPICall(ctx, details.AccountID, snapshot, raw); err != nil {
		metrics.SyncRuns.WithLabelValues("fetch_failed").Inc()
		return nil, fmt.Errorf("audit api call: %w", err)
	}

	// baseline for the deactivation scan; a failed load degrades to an empty
	// baseline with a warning, matching the absent-is-normal lookup policy
	existingByNIF := map[string]models.UserRecord{}
	if existing, err := e.stores.Users.List(ctx); err != nil {
		logger.Warnf("could not load existing users: %v", err)
	} else {
		for _, u := range existing {
			existingByNIF[u.NIF] = u
		}
	}

	report := &models.SyncReport{
		Processed:   []models.UserOutcome{},
		Deactivated: []models.UserOutcome{},
	}
	seen := map[string]bool{}
	for _, d := range snapshot.Descendants {
		nif, ok := identity.ExtractNIF(d.Name)
		if !ok {
			continue // no identity: skip silently, not an error
		}
		seen[nif] = true
		report.Processed = append(report.Processed, e.reconcileUser(ctx, nif, d))
	}

	for nif, existing := range existingByNIF {
		if seen[nif] || existing.Status != models.StatusActive {
			continue
		}
		report.Deactivated = append(report.Deactivated, e.deactivateUser(ctx, existing))
	}

	summary := report.Summarize()
	metrics.UsersCreated.Add(float64(summary.NewUsers))
	metrics.UsersUpdated.Add(float64(summary.UpdatedUsers))
	metrics.UsersDeactivated.Add(float64(summary.DeactivatedUsers))
	metrics.UserErrors.Add(float64(summary.Errors))
	metrics.SyncRuns.WithLabelValues("completed").Inc()
	metrics.SyncDuration.Observe(e.now().Sub(started).Seconds())

	logger.Infof("sync completed: %d processed, %d created, %d updated, %d deactivated, %d errors",
		summary.TotalProcessed, summary.NewUsers, summary.UpdatedUsers, summary.DeactivatedUsers, summary.Errors)
	return report, nil
}

// reconcileUser handles one remote-present identity end to end. Every
// failure is converted into an error outcome; the run continues.
func (e *Engine) reconcileUser(ctx context.Context, nif string, d trackimo.Descendant) models.UserOutcome {
	existing, err := e.stores.Users.FindByNIF(ctx, nif)
	if err != nil {
		return errorOutcome(nif, err)
	}

	now := e.now()
	candidate := &models.UserRecord{
		NIF:         nif,
		AccountID:   fmt.Sprintf("%d", d.AccountID),
		Email:       d.Email,
		AccountName: d.Name,
		Devices:     serializeDevices(d.Devices),
	}

	resolved, changes, outcome := Detect(existing, candidate, now)

	if err := e.stores.Users.Upsert(ctx, resolved); err != nil {
		return errorOutcome(nif, err)
	}
	if err := e.stores.Devices.UpsertBatch(ctx, devices.Normalize(nif, d.Devices, now)); err != nil {
		return errorOutcome(nif, err)
	}
	if len(changes) > 0 {
		entry := &models.ChangeLogEntry{
			PartitionKey: "USER_" + nif,
			RowKey:       store.AuditRowKey(e.now()),
			NIF:          nif,
			Timestamp:    now,
			Source:       models.SourceSync,
			Changes:      Render(changes),
			ChangesCount: len(changes),
		}
		if err := e.stores.Changes.Append(ctx, entry); err != nil {
			return errorOutcome(nif, err)
		}
	}

	logger.Debugf("processed user %s - %d changes", nif, len(changes))
	return models.UserOutcome{
		NIF:     nif,
		Plan:    resolved.Plan,
		Devices: len(d.Devices),
		Changes: len(changes),
		Status:  outcome,
	}
}

// deactivateUser transitions a remote-absent active user to inactive and
// appends the single-entry audit record.
func (e *Engine) deactivateUser(ctx context.Context, existing models.UserRecord) models.UserOutcome {
	now := e.now()
	existing.Status = models.StatusInactive
	existing.LastUpdated = now
	existing.DeactivatedTimestamp = now

	if err := e.stores.Users.Upsert(ctx, &existing); err != nil {
		logger.Errorf("error deactivating user %s: %v", existing.NIF, err)
		return models.UserOutcome{NIF: existing.NIF, Status: models.OutcomeErrorDeactivating, Error: err.Error()}
	}

	change := Change{Field: "status", Old: models.StatusActive, New: models.StatusInactive, Note: "user not found in remote API"}
	entry := &models.ChangeLogEntry{
		PartitionKey: "USER_" + existing.NIF,
		RowKey:       store.AuditRowKey(e.now()),
		NIF:          existing.NIF,
		Timestamp:    now,
		Source:       models.SourceDeactivation,
		Changes:      []string{change.String()},
		ChangesCount: 1,
	}
	if err := e.stores.Changes.Append(ctx, entry); err != nil {
		logger.Errorf("error deactivating user %s: %v", existing.NIF, err)
		return models.UserOutcome{NIF: existing.NIF, Status: models.OutcomeErrorDeactivating, Error: err.Error()}
	}

	logger.Infof("deactivated user %s - not found in remote snapshot", existing.NIF)
	return models.UserOutcome{
		NIF:    existing.NIF,
		Plan:   existing.Plan,
		Status: models.OutcomeDeactivated,
		Reason: "not_found_in_api",
	}
}

// logAPICall appends the write-once fetch audit record and, when an archiver
// is configured, stores the raw payload as a blob (best effort).
func (e *Engine) logAPICall(ctx context.Context, accountID int64, snapshot *trackimo.DescendantsResponse, raw []byte) error {
	now := e.now()
	entry := &models.APICallLog{
		PartitionKey:  "SYNC_USERS",
		RowKey:        store.AuditRowKey(now),
		Timestamp:     now,
		Endpoint:      "descendants",
		AccountID:     fmt.Sprintf("%d", accountID),
		ResponseCount: len(snapshot.Descendants),
		RawResponse:   string(raw),
	}
	if err := e.stores.APICalls.Append(ctx, entry); err != nil {
		return err
	}
	if e.archive != nil {
		key := fmt.Sprintf("descendants/%s.json", entry.RowKey)
		if err := e.archive.Store(ctx, key, raw); err != nil {
			logger.Warnf("snapshot archive failed for %s: %v", key, err)
		}
	}
	return nil
}

// serializeDevices produces the canonical device-list form used for
// structural comparison. A nil list serializes as an empty array so that
// unset and empty never differ.
func serializeDevices(devs []map[string]any) string {
	if devs == nil {
		devs = []map[string]any{}
	}
	b, err := json.Marshal(devs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func errorOutcome(nif string, err error) models.UserOutcome {
	logger.Errorf("error processing user %s: %v", nif, err)
	return models.UserOutcome{NIF: nif, Status: models.OutcomeError, Error: err.Error()}
}
