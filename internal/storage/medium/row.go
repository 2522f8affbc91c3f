package medium

import (
	"fmt"

	"github.com/yndnr/datalayer-go/internal/core/domain"
)

// Row is the persisted form of a domain.Record.
type Row struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Type      int    `json:"type"`
	Timestamp *int64 `json:"timestamp,omitempty"`
	Expiry    int64  `json:"expiry"`
}

// FromRecord encodes rec. An unset expiry is stored as SESSION.
func FromRecord(rec domain.Record) Row {
	row := Row{
		Key:    rec.Key,
		Value:  rec.Value,
		Type:   rec.Serialization.Code(),
		Expiry: rec.Expiry.Encode(),
	}
	if rec.LastUpdated != nil {
		ts := *rec.LastUpdated
		row.Timestamp = &ts
	}
	return row
}

// Record decodes the row. An unknown serialization code falls back to
// STRING; the record is still returned together with an
// ErrMalformedRecord describing the problem so callers can log it.
func (r Row) Record() (domain.Record, error) {
	ser, ok := domain.SerializationFromCode(r.Type)
	rec := domain.Record{
		Key:           r.Key,
		Value:         r.Value,
		Serialization: ser,
		Expiry:        domain.DecodeExpiry(r.Expiry),
	}
	if r.Timestamp != nil {
		ts := *r.Timestamp
		rec.LastUpdated = &ts
	}
	if !ok {
		return rec, domain.ErrMalformedRecord.WithDetails(
			fmt.Sprintf("key %q: unknown serialization code %d", r.Key, r.Type))
	}
	return rec, nil
}
