package access

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/koltyakov/posbridge/internal/domain"
)

func TestGateAlwaysAllowsLoopback(t *testing.T) {
	t.Parallel()

	g := NewGate(nil, nil)
	for _, addr := range []string{"127.0.0.1", "127.0.0.1:53000", "[::1]:8080", "::1"} {
		if !g.Allow(addr) {
			t.Fatalf("expected loopback %q to be allowed with empty allowlist", addr)
		}
	}
}

func TestGateAllowsOnlyConfiguredOrigins(t *testing.T) {
	t.Parallel()

	g := NewGate([]string{"10.0.0.5", "2001:db8::7"}, nil)

	tests := map[string]bool{
		"10.0.0.5:4000":         true,
		"10.0.0.5":              true,
		"[::ffff:10.0.0.5]:443": true,
		"[2001:db8::7]:9":       true,
		"10.0.0.6:4000":         false,
		"8.8.8.8":               false,
		"127.0.0.2":             false,
		"":                      false,
		"localhost:80":          false,
	}
	for in, want := range tests {
		if got := g.Allow(in); got != want {
			t.Fatalf("Allow(%q): got %v, want %v", in, got, want)
		}
	}
}

func TestGateSkipsInvalidEntries(t *testing.T) {
	t.Parallel()

	g := NewGate([]string{"not-an-ip", " 192.168.1.20 "}, nil)
	if !g.Allow("192.168.1.20:1") {
		t.Fatal("expected trimmed entry to be allowed")
	}
	want := []string{"127.0.0.1", "192.168.1.20", "::1"}
	got := g.Allowed()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Allowed: got %v, want %v", got, want)
	}
}

func TestGateObserverReceivesEveryDecision(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		events []domain.AccessEvent
	)
	g := NewGate([]string{"10.0.0.5"}, nil, WithObserver(func(evt domain.AccessEvent) {
		mu.Lock()
		events = append(events, evt)
		mu.Unlock()
	}))

	g.Allow("10.0.0.5:1000")
	g.Allow("8.8.8.8:53")

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].RemoteIP != "10.0.0.5" || !events[0].Allowed {
		t.Fatalf("unexpected first event %+v", events[0])
	}
	if events[1].RemoteIP != "8.8.8.8" || events[1].Allowed {
		t.Fatalf("unexpected second event %+v", events[1])
	}
	if events[1].CreatedAt.IsZero() {
		t.Fatal("expected event timestamp")
	}
}

func TestGateLogsDeniedWithAllowedSet(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	g := NewGate([]string{"10.0.0.5"}, logger)

	g.Allow("8.8.8.8:53")
	out := buf.String()
	if !strings.Contains(out, "access denied") || !strings.Contains(out, "remote=8.8.8.8") {
		t.Fatalf("expected denial record, got %q", out)
	}
	if !strings.Contains(out, "allowed=10.0.0.5,127.0.0.1,::1") {
		t.Fatalf("expected allowed set in denial record, got %q", out)
	}

	buf.Reset()
	g.Allow("127.0.0.1:1")
	if !strings.Contains(buf.String(), "access granted") {
		t.Fatalf("expected grant record, got %q", buf.String())
	}
}
