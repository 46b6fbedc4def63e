package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102",
}

// maxEpochMillis is the largest epoch a JavaScript Date accepts, about
// 273,000 years either side of 1970.
const maxEpochMillis = 8.64e15

// Timestamp is a point in time decoded leniently from ISO-8601 strings or
// epoch milliseconds. Input that cannot be parsed yields the zero Timestamp
// rather than a decode error so one bad record does not poison a batch.
type Timestamp struct {
	time.Time
}

// At wraps t.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// Valid reports whether the timestamp carries a parsed instant.
func (t Timestamp) Valid() bool {
	return !t.IsZero()
}

// ParseTimestamp parses s as ISO-8601 or as epoch milliseconds. Digit-only
// strings of eight characters or fewer are never read as epochs, so basic
// dates such as "20240101" keep their calendar meaning.
func ParseTimestamp(s string) (Timestamp, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Timestamp{}, false
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return Timestamp{Time: parsed}, true
		}
	}
	if len(strings.TrimPrefix(s, "-")) <= 8 {
		return Timestamp{}, false
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return Timestamp{}, false
	}
	return fromMillis(float64(ms))
}

func fromMillis(ms float64) (Timestamp, bool) {
	if math.IsNaN(ms) || math.Abs(ms) > maxEpochMillis || ms != math.Trunc(ms) {
		return Timestamp{}, false
	}
	return Timestamp{Time: time.UnixMilli(int64(ms)).UTC()}, true
}

// MarshalJSON writes RFC 3339, or null for an invalid timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON never fails; unparsable input leaves t invalid.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	*t = Timestamp{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		*t, _ = ParseTimestamp(s)
		return nil
	}
	if ms, err := strconv.ParseFloat(string(data), 64); err == nil {
		*t, _ = fromMillis(ms)
	}
	return nil
}
