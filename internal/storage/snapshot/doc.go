// Package snapshot writes point-in-time copies of a table to files and
// reads them back.
//
// File layout:
//
//	magic "DLAYSNAP" | u32 header length | header JSON |
//	u32 payload length | payload | sha256 of everything before it
//
// The payload is the JSON array of medium.Row values, optionally sealed
// with a pkg/crypto/adaptive cipher. The header is the cipher's
// additional data, so it cannot be altered without detection. Passphrase
// keys are derived with Argon2id using a per-file salt kept in the
// header.
package snapshot
