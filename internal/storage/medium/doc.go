// Package medium defines the durable medium contract the storage engine
// persists tables into.
//
// A Medium is a table-oriented store addressable by table name supporting
// keyed insert-or-replace, conditional update by key, filtered delete,
// filtered scan and filtered count. Row schema:
//
//	key       TEXT PRIMARY KEY
//	value     TEXT
//	type      INTEGER
//	timestamp INTEGER NULL
//	expiry    INTEGER
//
// Implementations live in sibling packages (sqlite, redis, memory) and in
// the storage package itself (Badger).
package medium
