package exports

import (
	"bytes"
	"encoding/json"
	"time"
)

// PayoutsJSONL builds a JSON Lines export for the supplied payouts and
// returns the serialised payload alongside a checksum.
func PayoutsJSONL(entries []*PayoutEntry) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		payload := map[string]interface{}{
			"sequence":   entry.Sequence,
			"content_id": entry.ContentID,
			"kind":       entry.Kind,
			"account":    entry.Account,
			"amount":     entry.amount(),
			"claimed_at": entry.ClaimedAt.UTC().Format(time.RFC3339),
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
