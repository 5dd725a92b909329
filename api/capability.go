package api

import "strings"

// normalizeCapability maps plural or variant path segments to canonical capability keys.
func normalizeCapability(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "log", "logs":
		return "log", true
	case "version", "versions":
		return "version", true
	default:
		return "", false
	}
}
