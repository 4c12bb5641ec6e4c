package feed

import (
	"fmt"

	"github.com/sugawarayuuta/sonnet"

	"github.com/fangwater/feedrace/internal/config"
)

// Adapter extracts the correlation key from one feed's payloads.
type Adapter struct {
	format   string // "raw" | "combined"
	keyField string
}

// NewAdapter builds an Adapter from the feed's config.
func NewAdapter(cfg config.FeedConfig) *Adapter {
	return &Adapter{format: cfg.Format, keyField: cfg.KeyField}
}

// Decode parses payload and returns the correlation key. ok is false with a
// nil error for recognized non-data messages (subscription acks, heartbeats)
// — those are dropped silently. A non-nil error means the payload is
// malformed or missing the key field; the caller counts it and continues.
func (a *Adapter) Decode(payload []byte) (key int64, ok bool, err error) {
	var obj map[string]any
	if err := sonnet.Unmarshal(payload, &obj); err != nil {
		return 0, false, fmt.Errorf("parse payload: %w", err)
	}

	data := obj
	if a.format == "combined" {
		inner, found := obj["data"].(map[string]any)
		if !found {
			if isAck(obj) {
				return 0, false, nil
			}
			return 0, false, fmt.Errorf("combined payload missing data object")
		}
		data = inner
	}

	v, found := data[a.keyField]
	if !found {
		if isAck(obj) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("payload missing key field %q", a.keyField)
	}

	f, isNum := v.(float64)
	if !isNum {
		return 0, false, fmt.Errorf("key field %q is not a number (%T)", a.keyField, v)
	}
	return int64(f), true, nil
}

// isAck reports whether obj looks like a subscription acknowledgment rather
// than a data message: a request-reply envelope ({"result":…,"id":…}) or an
// event notice ({"event":"subscribe",…}).
func isAck(obj map[string]any) bool {
	if _, found := obj["result"]; found {
		return true
	}
	if _, found := obj["event"]; found {
		return true
	}
	_, found := obj["id"]
	return found
}
