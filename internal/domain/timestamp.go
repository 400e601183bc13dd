package domain

import (
	"encoding/json"
	"time"
)

// TimestampKind discriminates the two timestamp representations that reach
// clients: store-assigned timestamps travel as epoch milliseconds, values
// synthesized on a client travel as ISO-8601 strings.
type TimestampKind int

const (
	ServerTimestamp TimestampKind = iota + 1
	ClientISOString
)

// Timestamp is a tagged union over the two wire forms. Normalization happens
// in exactly one place (Resolve); read sites never branch on the raw form.
type Timestamp struct {
	kind TimestampKind
	t    time.Time
	raw  string
}

// FromTime builds a server-assigned timestamp.
func FromTime(t time.Time) Timestamp {
	return Timestamp{kind: ServerTimestamp, t: t.UTC()}
}

// FromISO builds a client-supplied timestamp from an ISO-8601 string.
// An unparseable string resolves to the zero time rather than failing:
// a malformed timestamp must degrade ordering, not break the view.
func FromISO(s string) Timestamp {
	ts := Timestamp{kind: ClientISOString, raw: s}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		ts.t = t.UTC()
	}
	return ts
}

func (ts Timestamp) Kind() TimestampKind { return ts.kind }

func (ts Timestamp) IsZero() bool { return ts.kind == 0 || ts.t.IsZero() }

// Resolve returns the normalized instant regardless of wire form.
func (ts Timestamp) Resolve() time.Time { return ts.t }

// SameDay reports whether two timestamps fall on the same calendar day (UTC).
func (ts Timestamp) SameDay(other Timestamp) bool {
	y1, m1, d1 := ts.Resolve().Date()
	y2, m2, d2 := other.Resolve().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.kind == ClientISOString {
		raw := ts.raw
		if raw == "" {
			raw = ts.t.Format(time.RFC3339Nano)
		}
		return json.Marshal(raw)
	}
	return json.Marshal(ts.t.UnixMilli())
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*ts = FromISO(asString)
		return nil
	}
	var asMillis int64
	if err := json.Unmarshal(data, &asMillis); err != nil {
		return err
	}
	*ts = FromTime(time.UnixMilli(asMillis))
	return nil
}
