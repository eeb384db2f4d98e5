// Package identity provides deterministic short fingerprints for queries and
// pages. UIDs are dedup keys, not security tokens: equal normalized inputs
// must always yield equal UIDs, across restarts and platforms.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// UIDLength is the number of hex characters kept from the digest.
const UIDLength = 10

// Normalize applies NFKC normalization, trims surrounding whitespace and
// lowercases the input. This is the canonical form all UIDs are derived from.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFKC.String(s)))
}

// QueryUID returns the fingerprint for a (job title, company) pair.
// Any input is accepted; empty inputs still produce a valid UID.
func QueryUID(jobTitle, company string) string {
	return digest(Normalize(jobTitle) + "|" + Normalize(company))
}

// PageUID returns the fingerprint for a result URL. Same normalization and
// hash scheme as QueryUID; the separation is namespace convention only.
func PageUID(url string) string {
	return digest(Normalize(url))
}

func digest(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:UIDLength]
}
