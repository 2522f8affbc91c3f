package output

import (
	"strconv"
	"time"

	"github.com/yndnr/datalayer-go/internal/storage/snapshot"
)

// SnapshotList renders snapshot metadata, oldest first.
type SnapshotList []*snapshot.Info

// Table implements Tabler.
func (l SnapshotList) Table(wide bool) *Table {
	t := &Table{Headers: []string{"ID", "TABLE", "RECORDS", "CREATED", "ENCRYPTED"}}
	if wide {
		t.Headers = append(t.Headers, "SIZE", "CHECKSUM")
	}
	for _, info := range l {
		row := []string{
			info.ID,
			info.Table,
			strconv.Itoa(info.RecordCount),
			time.UnixMilli(info.CreatedAt).UTC().Format(time.RFC3339),
			strconv.FormatBool(info.Encrypted),
		}
		if wide {
			row = append(row, strconv.FormatInt(info.Size, 10), info.Checksum)
		}
		t.AddRow(row...)
	}
	return t
}
