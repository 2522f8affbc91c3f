package output

import (
	"time"

	"github.com/yndnr/datalayer-go/internal/core/domain"
)

// RecordView is the display form of a stored record.
type RecordView struct {
	Key         string     `json:"key" yaml:"key"`
	Value       any        `json:"value" yaml:"value"`
	Type        string     `json:"type" yaml:"type"`
	Expiry      string     `json:"expiry" yaml:"expiry"`
	Expired     bool       `json:"expired,omitempty" yaml:"expired,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty" yaml:"last_updated,omitempty"`
}

// NewRecordView decodes rec for display. Values that fail to decode are
// shown as their raw payload.
func NewRecordView(rec domain.Record, now time.Time) RecordView {
	v, err := rec.Decoded()
	if err != nil {
		v = rec.Value
	}
	view := RecordView{
		Key:     rec.Key,
		Value:   v,
		Type:    rec.Serialization.String(),
		Expiry:  rec.Expiry.String(),
		Expired: rec.IsExpired(now.UnixMilli()),
	}
	if rec.LastUpdated != nil {
		ts := rec.UpdatedAt().UTC()
		view.LastUpdated = &ts
	}
	return view
}

// Table renders a single record as FIELD/VALUE rows.
func (r RecordView) Table(wide bool) *Table {
	t := &Table{Headers: []string{"FIELD", "VALUE"}}
	t.AddRow("key", r.Key)
	t.AddRow("value", Cell(r.Value))
	t.AddRow("type", r.Type)
	t.AddRow("expiry", r.Expiry)
	if r.Expired {
		t.AddRow("expired", "true")
	}
	if wide {
		t.AddRow("last_updated", formatTime(r.LastUpdated))
	}
	return t
}

// RecordList is a set of records ordered by key.
type RecordList []RecordView

// Table renders one row per record.
func (l RecordList) Table(wide bool) *Table {
	t := &Table{Headers: []string{"KEY", "TYPE", "EXPIRY", "VALUE"}}
	if wide {
		t.Headers = append(t.Headers, "LAST_UPDATED")
	}
	for _, r := range l {
		expiry := r.Expiry
		if r.Expired {
			expiry += " (expired)"
		}
		row := []string{r.Key, r.Type, expiry, Cell(r.Value)}
		if wide {
			row = append(row, formatTime(r.LastUpdated))
		}
		t.AddRow(row...)
	}
	return t
}

func formatTime(ts *time.Time) string {
	if ts == nil {
		return "-"
	}
	return ts.Format(time.RFC3339)
}
