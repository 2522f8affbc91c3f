// Package service provides the data layer services built on storage
// tables:
//
//   - datalayer.go: typed facade (PutString, GetInt, ...) over one table
//   - session_boundary.go: purges SESSION-scoped records when a new
//     analytics session starts
//   - purger.go: removes expired records on startup and periodically
//   - backup.go: table snapshots through storage/snapshot
//
// Services depend on small interfaces satisfied by *storage.Table, so
// tests can substitute fakes.
package service
