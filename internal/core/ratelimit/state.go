package ratelimit

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// state is the persisted sliding window log, one monotonic timestamp per
// granted acquisition.
type state struct {
	Requests []float64 `json:"requests"`
}

// parseState validates persisted state. Any structural problem is reported
// as an error so the caller can reset to full capacity; it never panics and
// never partially recovers a malformed log.
func parseState(raw []byte) (state, error) {
	// Trailing NUL bytes show up when a writer died mid-truncate.
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return state{}, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return state{}, fmt.Errorf("state is not a JSON object: %w", err)
	}

	requests, ok := doc["requests"]
	if !ok {
		return state{}, errors.New(`state missing "requests" key`)
	}

	var timestamps []float64
	if err := json.Unmarshal(requests, &timestamps); err != nil {
		return state{}, fmt.Errorf(`"requests" is not a list of numbers: %w`, err)
	}

	return state{Requests: timestamps}, nil
}

// writeState persists the log, replacing the previous content. The caller
// holds the exclusive lock.
func writeState(path string, st state) error {
	if st.Requests == nil {
		st.Requests = []float64{}
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
