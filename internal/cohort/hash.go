package cohort

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Data is a flat mapping of attribute names to coarse category labels.
// Only its content matters; construction order never reaches the hash.
type Data map[string]string

// HashString returns the hex encoded SHA-256 digest of input.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

// Normalize renders the cohort as key:value pairs sorted by key and joined by "|".
func (d Data) Normalize() string {
	return d.join(":", "|")
}

// Hash is the pool lookup key for a cohort.
func Hash(d Data) string {
	return HashString(d.Normalize())
}

// Describe renders the cohort for prompts, in key order ("k: v, k: v").
func (d Data) Describe() string {
	return d.join(": ", ", ")
}

func (d Data) join(kvSep, pairSep string) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(pairSep)
		}
		b.WriteString(k)
		b.WriteString(kvSep)
		b.WriteString(d[k])
	}
	return b.String()
}
