// Package redis provides a medium.Medium on a Redis server.
//
// Each table is one hash at "<prefix>:<table>" whose fields are record
// keys and whose values are JSON-encoded rows. Expiry is evaluated client
// side; Redis key TTLs are not used because SESSION and FOREVER rows
// share the hash with timed rows.
package redis
