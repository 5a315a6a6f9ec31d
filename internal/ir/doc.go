// Package ir provides the canonical encoding and content addressing used by
// every collaborative object in cobs.
//
// This package imports nothing internal. Anything that derives an identifier
// from content (action ids, materialization digests) goes through
// MarshalCanonical and Hash so that two replicas always agree on the bytes
// being hashed.
//
// Constraints on canonical values:
//   - NO floats anywhere; timestamps and counters are int64
//   - NO null; absent fields are omitted by the caller
//   - strings are NFC normalized before encoding
//   - object keys are ordered by UTF-16 code units (RFC 8785)
package ir
