// Package sqlite provides the default medium.Medium on an embedded SQLite
// database (modernc.org/sqlite, no cgo).
//
// Every table is a real SQL table with the row schema documented in the
// medium package. Filters are compiled to WHERE clauses so expiry is
// evaluated by the database.
package sqlite
