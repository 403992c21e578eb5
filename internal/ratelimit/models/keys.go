package models

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces every rate-limit record.
const KeyPrefix = "rl"

// Key builds the storage key for a (class, client) pair.
func Key(class LimitClass, clientKey string) string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, sanitizeKeySegment(string(class)), sanitizeKeySegment(clientKey))
}

// sanitizeKeySegment escapes delimiter characters in key segments so that
// client identifiers containing ':' (IPv6 addresses, forged headers) can never
// address a neighbouring record.
//
// Escape rules (order matters):
//  1. Escape '_' to '__' (escape the escape character first)
//  2. Escape ':' to '_c' (escape the delimiter)
//
// Examples:
//   - "2001:db8::1" → "2001_cdb8_c_c1"
//   - "a_b"         → "a__b"
//   - "a_:b"        → "a___cb"
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
