package domain

import (
	"fmt"
	"time"
)

// Persisted expiry encodings.
const (
	// ExpiryForeverValue is the encoding of FOREVER. Any negative value
	// decodes to FOREVER.
	ExpiryForeverValue int64 = -1

	// ExpirySessionValue is the encoding of SESSION. No realistic absolute
	// deadline is ever 0 ms after the epoch.
	ExpirySessionValue int64 = 0
)

type expiryKind uint8

const (
	expiryUnset expiryKind = iota
	expiryForever
	expirySession
	expiryUntil
)

// Expiry is the lifetime policy of a record.
//
// The zero value is "unset": a record that has not yet been normalized
// by a write path. Unset never expires and encodes as SESSION.
type Expiry struct {
	kind expiryKind
	at   int64 // Unix milliseconds, only for expiryUntil
}

// Forever returns the policy of a record that never expires.
func Forever() Expiry {
	return Expiry{kind: expiryForever}
}

// Session returns the policy of a record that lives until the next
// session boundary.
func Session() Expiry {
	return Expiry{kind: expirySession}
}

// Until returns the policy of a record that expires at t.
func Until(t time.Time) Expiry {
	return UntilMillis(t.UnixMilli())
}

// UntilMillis returns the policy of a record that expires at the given
// Unix millisecond deadline. Non-positive deadlines collide with the
// reserved encodings and are clamped to 1 (already expired).
func UntilMillis(ms int64) Expiry {
	if ms <= 0 {
		ms = 1
	}
	return Expiry{kind: expiryUntil, at: ms}
}

// After returns a policy expiring d after now.
func After(now time.Time, d time.Duration) Expiry {
	return Until(now.Add(d))
}

// DecodeExpiry converts a persisted expiry value back into a policy.
func DecodeExpiry(v int64) Expiry {
	switch {
	case v < 0:
		return Forever()
	case v == ExpirySessionValue:
		return Session()
	default:
		return Expiry{kind: expiryUntil, at: v}
	}
}

// Encode returns the persisted numeric form of the policy.
func (e Expiry) Encode() int64 {
	switch e.kind {
	case expiryForever:
		return ExpiryForeverValue
	case expiryUntil:
		return e.at
	default:
		return ExpirySessionValue
	}
}

// IsSet reports whether the policy was explicitly chosen.
func (e Expiry) IsSet() bool { return e.kind != expiryUnset }

// IsForever reports whether the policy is FOREVER.
func (e Expiry) IsForever() bool { return e.kind == expiryForever }

// IsSession reports whether the policy is SESSION.
func (e Expiry) IsSession() bool { return e.kind == expirySession }

// Deadline returns the absolute deadline of an UNTIL policy.
func (e Expiry) Deadline() (time.Time, bool) {
	if e.kind != expiryUntil {
		return time.Time{}, false
	}
	return time.UnixMilli(e.at), true
}

// IsExpired reports whether the policy has lapsed at now (Unix ms).
// SESSION entries never expire by time, only at a session boundary.
func (e Expiry) IsExpired(now int64) bool {
	return e.kind == expiryUntil && e.at <= now
}

// String implements fmt.Stringer.
func (e Expiry) String() string {
	switch e.kind {
	case expiryForever:
		return "FOREVER"
	case expirySession:
		return "SESSION"
	case expiryUntil:
		return fmt.Sprintf("UNTIL(%s)", time.UnixMilli(e.at).UTC().Format(time.RFC3339Nano))
	default:
		return "UNSET"
	}
}

// ParseExpiry parses the textual forms accepted by configuration and the
// CLI: "forever", "session", a duration relative to now ("30m") or an
// RFC 3339 timestamp.
func ParseExpiry(s string, now time.Time) (Expiry, error) {
	switch s {
	case "", "session", "SESSION":
		return Session(), nil
	case "forever", "FOREVER":
		return Forever(), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return Expiry{}, ErrInvalidArgument.WithDetails("expiry duration must be positive")
		}
		return After(now, d), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Until(t), nil
	}
	return Expiry{}, ErrInvalidArgument.WithDetails(fmt.Sprintf("unrecognized expiry %q", s))
}
