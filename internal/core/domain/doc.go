// Package domain defines the core domain models for the data layer.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Record: one stored entry with its serialization tag, expiry and timestamp
//   - Expiry: the FOREVER / SESSION / UNTIL(t) policy and its numeric encoding
//   - Serialization: typed encoders/decoders for record payloads
//   - Errors: Domain-specific error definitions
package domain
