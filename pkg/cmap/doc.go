// Package cmap provides a sharded, string-keyed concurrent map.
//
// Keys are spread over a power-of-two number of shards with maphash; each
// shard has its own RWMutex. Multi-shard operations (Range, Len,
// DeleteFunc) lock one shard at a time, so they are not a consistent
// snapshot when writers run concurrently.
//
//	m := cmap.New[medium.Row]()
//	m.Set("google_adid", row)
//	row, ok := m.Get("google_adid")
package cmap
