package netutil

import "testing"

func TestParseRemoteIP(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"127.0.0.1:54321":       "127.0.0.1",
		"10.0.0.5":              "10.0.0.5",
		" 10.0.0.5 ":            "10.0.0.5",
		"[::1]:8080":            "::1",
		"::1":                   "::1",
		"[::ffff:10.0.0.5]:443": "10.0.0.5",
		"[fe80::1%eth0]:9999":   "fe80::1",
		"2001:db8::1":           "2001:db8::1",
		"[2001:db8::1]":         "2001:db8::1",
	}
	for in, want := range tests {
		addr, ok := ParseRemoteIP(in)
		if !ok {
			t.Fatalf("ParseRemoteIP(%q): expected ok", in)
		}
		if got := addr.String(); got != want {
			t.Fatalf("ParseRemoteIP(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestParseRemoteIPRejectsNonIP(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "localhost", "localhost:80", "example.com:443", "not an ip"} {
		if _, ok := ParseRemoteIP(in); ok {
			t.Fatalf("ParseRemoteIP(%q): expected failure", in)
		}
	}
}

func TestRemoteHost(t *testing.T) {
	t.Parallel()

	if got := RemoteHost("192.168.1.9:5000"); got != "192.168.1.9" {
		t.Fatalf("RemoteHost: got %q", got)
	}
	if got := RemoteHost(" pipe "); got != "pipe" {
		t.Fatalf("RemoteHost fallback: got %q", got)
	}
}
