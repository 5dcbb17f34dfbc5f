package events

import "encoding/json"

// BumpAttempt rewrites a raw payload with the given delivery attempt count
// so a requeued event carries its retry history across the wire.
func BumpAttempt(payload []byte, attempt int) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, err
	}
	m["_attempt"] = attempt
	return json.Marshal(m)
}
