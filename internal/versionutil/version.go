package versionutil

import "strings"

// EnsureVPrefix returns s with a leading "v" if it doesn't already have one.
func EnsureVPrefix(s string) string {
	if s != "" && !strings.HasPrefix(s, "v") {
		return "v" + s
	}
	return s
}

// Display renders a build version for humans; unset builds show as "dev".
func Display(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || s == "dev" {
		return "dev"
	}
	if looksLikeCommit(s) {
		return s
	}
	return EnsureVPrefix(s)
}

// looksLikeCommit reports whether s is an abbreviated or full git hash.
func looksLikeCommit(s string) bool {
	if len(s) < 7 || len(s) > 40 {
		return false
	}
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
