// Copyright 2024-2026 Aiku AI

package connector

import (
	"strings"
)

// IsSnowflake reports whether id looks like a remote object ID: a non-empty
// run of ASCII digits.
func IsSnowflake(id string) bool {
	if id == "" || len(id) > 20 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

// CompareSnowflakes orders two IDs by creation time without parsing them.
// Snowflakes grow with time, so a shorter one is older and equal lengths
// compare lexically.
func CompareSnowflakes(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// NormalizeOperation maps a trigger file name to an operation tag:
// surrounding space is dropped, letters are lowered, and inner spaces and
// hyphens become underscores.
func NormalizeOperation(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' {
			return '_'
		}
		return r
	}, name)
}
