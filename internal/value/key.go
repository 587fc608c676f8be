package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainQuery is the domain prefix for query identities.
// The version suffix allows a future algorithm migration.
const DomainQuery = "querysync/query/v1"

// QueryKey is the canonical identity of a (query name, arguments) pair.
// Two calls with structurally equal arguments always yield the same key.
type QueryKey string

// String returns the key as a string.
func (k QueryKey) String() string {
	return string(k)
}

// Short returns a 12 character prefix for log lines.
func (k QueryKey) Short() string {
	if len(k) <= 12 {
		return string(k)
	}
	return string(k[:12])
}

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Canonicalize computes the QueryKey for a query name and its arguments.
//
// The key is a pure function of (name, structural value of args): property
// insertion order and reference identity never matter. A nil args map is the
// same query as an empty one.
func Canonicalize(name string, args map[string]any) (QueryKey, error) {
	normalized, err := NormalizeArgs(args)
	if err != nil {
		return "", err
	}
	return canonicalizeObject(name, normalized)
}

func canonicalizeObject(name string, args Object) (QueryKey, error) {
	canonical, err := MarshalCanonical(Object{
		"name": String(name),
		"args": args,
	})
	if err != nil {
		return "", fmt.Errorf("canonicalize %s: %w", name, err)
	}
	return QueryKey(hashWithDomain(DomainQuery, canonical)), nil
}

// CanonicalArgs returns the canonical JSON text of a query's arguments.
// Used for persistence and diagnostics.
func CanonicalArgs(args map[string]any) (string, error) {
	normalized, err := NormalizeArgs(args)
	if err != nil {
		return "", err
	}
	b, err := MarshalCanonical(normalized)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MustCanonicalize is like Canonicalize but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCanonicalize(name string, args map[string]any) QueryKey {
	key, err := Canonicalize(name, args)
	if err != nil {
		panic(err)
	}
	return key
}
