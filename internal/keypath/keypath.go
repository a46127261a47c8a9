// Package keypath turns structured cache key paths into flat store keys.
//
// A flat key is the namespace followed by every path segment, each one
// terminated by Delimiter. The trailing delimiter after the last segment means
// a plain string prefix test on flat keys answers "is this entry at or below
// that path" without matching siblings that only share leading characters.
package keypath

import "strings"

// Delimiter separates the namespace and segments inside a flat key.
const Delimiter = "::"

var escaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Escape makes a segment safe to embed in a flat key. Escaped segments never
// contain ':' so they cannot forge or straddle a delimiter.
func Escape(segment string) string { return escaper.Replace(segment) }

// Encode builds the flat key for path inside namespace. An empty path encodes
// the namespace root.
func Encode(namespace string, path []string) string {
	var sb strings.Builder
	sb.WriteString(Escape(namespace))
	sb.WriteString(Delimiter)
	for _, seg := range path {
		sb.WriteString(Escape(seg))
		sb.WriteString(Delimiter)
	}
	return sb.String()
}

// IsUnder reports whether flatKey names path itself or one of its descendants.
func IsUnder(flatKey, namespace string, path []string) bool {
	return strings.HasPrefix(flatKey, Encode(namespace, path))
}
