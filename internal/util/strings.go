package util

import (
	"strconv"
	"strings"
)

// DefaultString returns the fallback value if v is empty or consists entirely
// of whitespace; otherwise it returns v unchanged.
func DefaultString(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

// EmptyDash returns "-" for blank strings so table cells never look omitted.
func EmptyDash(s string) string {
	return DefaultString(s, "-")
}

// IntDash renders n, or "-" when n is not positive.
func IntDash(n int) string {
	if n <= 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

// JoinInts renders a list of positive integers separated by sep, or "-" when
// the list holds none.
func JoinInts(ns []int, sep string) string {
	parts := make([]string, 0, len(ns))
	for _, n := range ns {
		if n > 0 {
			parts = append(parts, strconv.Itoa(n))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, sep)
}
