package domain

import "time"

// MaxKeyLength bounds record keys.
const MaxKeyLength = 1024

// Record is one stored entry of a table.
type Record struct {
	// Key identifies the record; unique within a table.
	Key string `json:"key"`

	// Value is the serialized payload.
	Value string `json:"value"`

	// Serialization drives decoding of Value on read.
	Serialization Serialization `json:"type"`

	// Expiry is the lifetime policy. The zero value is unset and is
	// normalized to SESSION by the write paths.
	Expiry Expiry `json:"-"`

	// LastUpdated is the Unix millisecond time of the last write, or nil
	// when the row was never stamped.
	LastUpdated *int64 `json:"last_updated,omitempty"`
}

// NewRecord builds a record from a Go value, picking its Serialization.
func NewRecord(key string, value any, expiry Expiry) (Record, error) {
	payload, ser, err := EncodeValue(value)
	if err != nil {
		return Record{}, err
	}
	return Record{
		Key:           key,
		Value:         payload,
		Serialization: ser,
		Expiry:        expiry,
	}, nil
}

// Validate checks the record can be stored.
func (r Record) Validate() error {
	if r.Key == "" {
		return ErrMissingArgument.WithDetails("key is required")
	}
	if len(r.Key) > MaxKeyLength {
		return ErrInvalidArgument.WithDetails("key exceeds maximum length")
	}
	return nil
}

// IsExpired reports whether the record has lapsed at now (Unix ms).
func (r Record) IsExpired(now int64) bool {
	return r.Expiry.IsExpired(now)
}

// Decoded returns the payload converted according to the record's
// Serialization.
func (r Record) Decoded() (any, error) {
	return r.Serialization.Decode(r.Value)
}

// UpdatedAt returns LastUpdated as a time, or the zero time.
func (r Record) UpdatedAt() time.Time {
	if r.LastUpdated == nil {
		return time.Time{}
	}
	return time.UnixMilli(*r.LastUpdated)
}

// Stamp returns a copy of r with LastUpdated set to now (Unix ms).
func (r Record) Stamp(now int64) Record {
	ts := now
	r.LastUpdated = &ts
	return r
}
