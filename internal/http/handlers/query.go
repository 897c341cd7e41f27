package handlers

import "strconv"

// parseIntDefault parses s as an int, returning fallback on empty or
// malformed input — shared by every handler that reads a ?limit=/?offset=
// query param.
func parseIntDefault(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
