// Package tlsroots builds client TLS configuration for remote storage.
//
// A Pool collects trusted roots from the system store, PEM files or a
// directory. ClientConfig combines the pool with an optional client
// certificate that is reloaded when its files change.
package tlsroots
