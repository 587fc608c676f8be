// Package value canonicalizes query arguments into stable identities.
//
// Query arguments arrive as duck-typed, JSON-like Go values (map[string]any,
// []any, numbers of any width). Normalize converts them into the sealed Value
// tree, MarshalCanonical renders that tree as RFC 8785 canonical JSON, and
// Canonicalize hashes (name, canonical args) into a QueryKey.
//
// Key design constraints:
//   - Structurally equal arguments produce byte-identical keys regardless of
//     map iteration order or reference identity
//   - Integral floats below 2^53 normalize to Int, so a JSON-decoded 1 and a
//     Go literal 1 collapse to the same key
//   - Strings are compared byte for byte: no Unicode normalization is
//     applied, and invalid UTF-8 fails with ErrInvalidArguments. FoldNFC
//     is available for callers that want to normalize human input first
//   - Non-finite numbers, cycles and unsupported kinds fail with
//     ErrInvalidArguments at the call that produced them
//
// This package imports nothing internal.
package value
