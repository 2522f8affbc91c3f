package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yndnr/datalayer-go/internal/core/domain"
)

// Store is the table contract the facade needs. *storage.Table
// satisfies it.
type Store interface {
	Name() string
	GetAll(ctx context.Context) (map[string]domain.Record, error)
	Get(ctx context.Context, key string) (domain.Record, bool, error)
	Upsert(ctx context.Context, rec domain.Record) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Keys(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Contains(ctx context.Context, key string) (bool, error)
}

// DataLayer stores typed values in one table.
//
// Writes take an expiry; the zero domain.Expiry leaves an existing live
// record's expiry in place and makes new records SESSION-scoped. Reads
// report ok == false when the key is absent or holds another type.
type DataLayer struct {
	store  Store
	logger *slog.Logger
}

// NewDataLayer creates a facade over store.
func NewDataLayer(store Store, logger *slog.Logger) *DataLayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataLayer{store: store, logger: logger.With("table", store.Name())}
}

// Put stores any value EncodeValue supports.
func (d *DataLayer) Put(ctx context.Context, key string, value any, expiry domain.Expiry) error {
	rec, err := domain.NewRecord(key, value, expiry)
	if err != nil {
		return err
	}
	return d.store.Upsert(ctx, rec)
}

// PutString stores a string under key.
func (d *DataLayer) PutString(ctx context.Context, key, v string, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// PutInt stores an int under key.
func (d *DataLayer) PutInt(ctx context.Context, key string, v int, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// PutLong stores an int64 under key.
func (d *DataLayer) PutLong(ctx context.Context, key string, v int64, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// PutDouble stores a float64 under key.
func (d *DataLayer) PutDouble(ctx context.Context, key string, v float64, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// PutBoolean stores a bool under key.
func (d *DataLayer) PutBoolean(ctx context.Context, key string, v bool, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// PutStringArray stores a string array under key.
func (d *DataLayer) PutStringArray(ctx context.Context, key string, v []string, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// PutIntArray stores an int array under key.
func (d *DataLayer) PutIntArray(ctx context.Context, key string, v []int, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// PutLongArray stores an int64 array under key.
func (d *DataLayer) PutLongArray(ctx context.Context, key string, v []int64, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// PutDoubleArray stores a float64 array under key.
func (d *DataLayer) PutDoubleArray(ctx context.Context, key string, v []float64, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// PutBooleanArray stores a bool array under key.
func (d *DataLayer) PutBooleanArray(ctx context.Context, key string, v []bool, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// PutJSONObject stores a JSON object under key.
func (d *DataLayer) PutJSONObject(ctx context.Context, key string, v map[string]any, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// PutJSONArray stores a JSON array under key.
func (d *DataLayer) PutJSONArray(ctx context.Context, key string, v []any, expiry domain.Expiry) error {
	return d.Put(ctx, key, v, expiry)
}

// GetAny returns the decoded value of key.
func (d *DataLayer) GetAny(ctx context.Context, key string) (any, bool, error) {
	rec, ok, err := d.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	v, err := rec.Decoded()
	if err != nil {
		d.logger.WarnContext(ctx, "stored value not decodable", "key", key, "type", rec.Serialization.String(), "error", err)
		return nil, false, nil
	}
	return v, true, nil
}

func getAs[T any](ctx context.Context, d *DataLayer, key string) (T, bool, error) {
	var zero T
	v, ok, err := d.GetAny(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	typed, ok := v.(T)
	if !ok {
		d.logger.DebugContext(ctx, "stored value has another type", "key", key, "got", typeName(v), "want", typeName(zero))
		return zero, false, nil
	}
	return typed, true, nil
}

// GetString returns the value of key when it is stored as a string.
func (d *DataLayer) GetString(ctx context.Context, key string) (string, bool, error) {
	return getAs[string](ctx, d, key)
}

// GetInt returns the value of key when it is stored as an int.
func (d *DataLayer) GetInt(ctx context.Context, key string) (int, bool, error) {
	return getAs[int](ctx, d, key)
}

// GetLong returns the value of key when it is stored as an int64.
func (d *DataLayer) GetLong(ctx context.Context, key string) (int64, bool, error) {
	return getAs[int64](ctx, d, key)
}

// GetDouble returns the value of key when it is stored as a float64.
func (d *DataLayer) GetDouble(ctx context.Context, key string) (float64, bool, error) {
	return getAs[float64](ctx, d, key)
}

// GetBoolean returns the value of key when it is stored as a bool.
func (d *DataLayer) GetBoolean(ctx context.Context, key string) (bool, bool, error) {
	return getAs[bool](ctx, d, key)
}

// GetStringArray returns the value of key when it is stored as a string array.
func (d *DataLayer) GetStringArray(ctx context.Context, key string) ([]string, bool, error) {
	return getAs[[]string](ctx, d, key)
}

// GetIntArray returns the value of key when it is stored as an int array.
func (d *DataLayer) GetIntArray(ctx context.Context, key string) ([]int, bool, error) {
	return getAs[[]int](ctx, d, key)
}

// GetLongArray returns the value of key when it is stored as an int64 array.
func (d *DataLayer) GetLongArray(ctx context.Context, key string) ([]int64, bool, error) {
	return getAs[[]int64](ctx, d, key)
}

// GetDoubleArray returns the value of key when it is stored as a float64 array.
func (d *DataLayer) GetDoubleArray(ctx context.Context, key string) ([]float64, bool, error) {
	return getAs[[]float64](ctx, d, key)
}

// GetBooleanArray returns the value of key when it is stored as a bool array.
func (d *DataLayer) GetBooleanArray(ctx context.Context, key string) ([]bool, bool, error) {
	return getAs[[]bool](ctx, d, key)
}

// GetJSONObject returns the value of key when it is stored as a JSON object.
func (d *DataLayer) GetJSONObject(ctx context.Context, key string) (map[string]any, bool, error) {
	return getAs[map[string]any](ctx, d, key)
}

// GetJSONArray returns the value of key when it is stored as a JSON array.
func (d *DataLayer) GetJSONArray(ctx context.Context, key string) ([]any, bool, error) {
	return getAs[[]any](ctx, d, key)
}

// All returns every visible value decoded. Undecodable records are
// skipped.
func (d *DataLayer) All(ctx context.Context) (map[string]any, error) {
	recs, err := d.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(recs))
	for key, rec := range recs {
		v, err := rec.Decoded()
		if err != nil {
			d.logger.WarnContext(ctx, "stored value not decodable", "key", key, "type", rec.Serialization.String(), "error", err)
			continue
		}
		out[key] = v
	}
	return out, nil
}

// Remove deletes key. Absent keys are not an error.
func (d *DataLayer) Remove(ctx context.Context, key string) error {
	return d.store.Delete(ctx, key)
}

// Clear deletes every record of the table.
func (d *DataLayer) Clear(ctx context.Context) error {
	return d.store.Clear(ctx)
}

// Contains reports whether key holds a visible record.
func (d *DataLayer) Contains(ctx context.Context, key string) (bool, error) {
	return d.store.Contains(ctx, key)
}

// Keys returns the visible keys in ascending order.
func (d *DataLayer) Keys(ctx context.Context) ([]string, error) {
	return d.store.Keys(ctx)
}

// Count returns the number of visible records.
func (d *DataLayer) Count(ctx context.Context) (int, error) {
	return d.store.Count(ctx)
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
