// Package memory provides a volatile medium.Medium.
//
// Tables are sharded concurrent maps keyed by record key. Nothing survives
// Close; the medium backs tests and the "memory" storage driver used for
// ephemeral CLI runs.
package memory
