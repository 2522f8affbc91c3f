// Package storage provides the table engine of the data layer.
//
// A Table is a named key-value partition persisted in a medium.Medium.
// The package is split in two layers:
//
//   - Table: the public surface. Every call is a unit scheduled on the
//     table's single executor goroutine, so operations are strictly
//     ordered.
//   - core: unserialized primitives used inside units. Composite
//     operations (Upsert reading before writing, purges selecting before
//     deleting) call core directly, never the Table.
//
// Change hooks (TableConfig.OnUpdate/OnRemove, Table.Subscribe) run inside
// the unit after the durable write. A hook calling back into its own table
// with the context it was given fails fast with domain.ErrReentrantCall.
//
// Media:
//
//   - sqlite (default): modernc.org/sqlite, one SQL table per Table
//   - badger: embedded Badger v3, BadgerMedium in this package
//   - redis: one hash per table
//   - memory: sharded maps, nothing persisted
package storage
