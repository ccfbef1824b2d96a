package versionutil

import "testing"

func TestDisplay(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":         "dev",
		"dev":      "dev",
		"1.2.3":    "v1.2.3",
		"v1.2.3":   "v1.2.3",
		"3f9a1c2":  "3f9a1c2",
		"release":  "vrelease",
		" 0.9.0 ":  "v0.9.0",
		"deadbeef": "deadbeef",
	}
	for in, want := range tests {
		if got := Display(in); got != want {
			t.Fatalf("Display(%q): got %q, want %q", in, got, want)
		}
	}
}
