package devices

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/petpath/tracksync/internal/models"
)

// Normalize converts the raw device list of one user into DeviceRecord
// projections keyed by "<nif>_<deviceID>". Every input device yields exactly
// one record, in input order; the whole set is rewritten on each sync, so
// there is no per-device diffing here.
func Normalize(nif string, raw []map[string]any, now time.Time) []models.DeviceRecord {
	out := make([]models.DeviceRecord, 0, len(raw))
	for i, dev := range raw {
		id := deviceID(dev, i)
		attrs, err := json.Marshal(dev)
		if err != nil {
			// maps built from decoded JSON always marshal; keep the record anyway
			attrs = []byte("{}")
		}
		out = append(out, models.DeviceRecord{
			Key:         nif + "_" + id,
			NIF:         nif,
			DeviceID:    id,
			Attributes:  string(attrs),
			LastUpdated: now,
		})
	}
	return out
}

// deviceID pulls the device identifier out of a raw device map. Trackimo
// payloads carry it as "device_id" or "id", numeric or string depending on
// the endpoint version; the list index is the fallback so no device is ever
// dropped.
func deviceID(dev map[string]any, index int) string {
	for _, key := range []string{"device_id", "id"} {
		switch v := dev[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		case json.Number:
			return v.String()
		}
	}
	return fmt.Sprintf("idx%d", index)
}
