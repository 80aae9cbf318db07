package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/matheus3301/bossmsg/internal/types"
)

// storedMessage mirrors types.Message but keeps the timestamp raw so both
// ISO-8601 strings and epoch milliseconds can be read back.
type storedMessage struct {
	types.Message
	Timestamp json.RawMessage `json:"timestamp"`
}

func decodeMessages(raw []byte) (map[string][]types.Message, error) {
	var stored map[string][]storedMessage
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, err
	}
	out := make(map[string][]types.Message, len(stored))
	for contactID, list := range stored {
		msgs := make([]types.Message, 0, len(list))
		for _, sm := range list {
			ts, err := parseTimestamp(sm.Timestamp)
			if err != nil {
				return nil, fmt.Errorf("message %s: %w", sm.ID, err)
			}
			m := sm.Message
			m.Timestamp = ts
			msgs = append(msgs, m)
		}
		out[contactID] = msgs
	}
	return out, nil
}

// parseTimestamp accepts an RFC 3339 string, a numeric string, or a JSON
// number of milliseconds since the Unix epoch.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t, nil
		}
		ms, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("timestamp %q: not RFC 3339 or epoch millis", s)
		}
		return time.UnixMilli(ms), nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return time.Time{}, fmt.Errorf("timestamp %s: %w", raw, err)
	}
	return time.UnixMilli(int64(f)), nil
}
