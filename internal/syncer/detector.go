package syncer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/petpath/tracksync/internal/models"
)

// Change is one structured field delta. It stays structured until the audit
// boundary, where String renders the human-readable form stored in the
// change log.
type Change struct {
	Field string
	Old   string
	New   string
	Note  string
}

func (c Change) String() string {
	if c.Field == "" {
		return c.Note
	}
	s := fmt.Sprintf("%s: '%s' → '%s'", c.Field, c.Old, c.New)
	if c.Note != "" {
		s += " (" + c.Note + ")"
	}
	return s
}

// Render serializes a change list for the audit log.
func Render(changes []Change) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.String()
	}
	return out
}

// Detect compares an optional existing record against a freshly built
// candidate (remote-sourced fields populated, plan and created_timestamp
// unresolved) and returns the resolved record, the ordered change list and
// the created/updated classification.
//
// The evaluation order is fixed because it fixes the audit message order:
// creation, carry-over, account_id, email, account_name, devices, status.
// An unchanged user comes back as "updated" with an empty change list; the
// engine appends no audit entry for it, which is what makes re-runs silent.
func Detect(existing *models.UserRecord, candidate *models.UserRecord, now time.Time) (*models.UserRecord, []Change, string) {
	resolved := *candidate
	resolved.Status = models.StatusActive
	resolved.LastUpdated = now

	if existing == nil {
		resolved.Plan = ""
		resolved.CreatedTimestamp = now
		changes := []Change{
			{Note: "new user created"},
			{Field: "status", Old: "", New: models.StatusActive},
		}
		return &resolved, changes, models.OutcomeCreated
	}

	// plan and created_timestamp are never touched by reconciliation
	resolved.Plan = existing.Plan
	resolved.CreatedTimestamp = existing.CreatedTimestamp

	var changes []Change
	if existing.AccountID != resolved.AccountID {
		changes = append(changes, Change{Field: "account_id", Old: existing.AccountID, New: resolved.AccountID})
	}
	if existing.Email != resolved.Email {
		changes = append(changes, Change{Field: "email", Old: existing.Email, New: resolved.Email})
	}
	if existing.AccountName != resolved.AccountName {
		changes = append(changes, Change{Field: "account_name", Old: existing.AccountName, New: resolved.AccountName})
	}
	if existing.Devices != resolved.Devices {
		// count-level message only; the device table carries the detail
		changes = append(changes, Change{
			Field: "devices",
			Old:   fmt.Sprintf("%d", deviceCount(existing.Devices)),
			New:   fmt.Sprintf("%d", deviceCount(resolved.Devices)),
		})
	}
	if existing.Status != models.StatusActive {
		changes = append(changes, Change{Field: "status", Old: existing.Status, New: models.StatusActive, Note: "reactivated"})
	}
	return &resolved, changes, models.OutcomeUpdated
}

// deviceCount parses the serialized device list; malformed payloads count as
// zero rather than failing the comparison.
func deviceCount(serialized string) int {
	if serialized == "" {
		return 0
	}
	var devs []json.RawMessage
	if err := json.Unmarshal([]byte(serialized), &devs); err != nil {
		return 0
	}
	return len(devs)
}
