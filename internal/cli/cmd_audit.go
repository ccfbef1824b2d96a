package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/koltyakov/posbridge/internal/store/sqlite"
)

const defaultAuditDBPath = "./posbridge-audit.db"

func runAudit(ctx context.Context, args []string, out io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: posbridge audit list [flags]")
		return 2
	}
	switch args[0] {
	case "list":
		return runAuditList(ctx, args[1:], out)
	default:
		fmt.Fprintln(os.Stderr, "unknown audit command:", args[0])
		return 2
	}
}

func runAuditList(ctx context.Context, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("audit-list", flag.ContinueOnError)
	var (
		dbPath     string
		limit      int
		deniedOnly bool
	)
	fs.StringVar(&dbPath, "db", envOr("POSBRIDGE_AUDIT_DB", defaultAuditDBPath), "sqlite db path")
	fs.IntVar(&limit, "limit", 50, "maximum number of entries")
	fs.BoolVar(&deniedOnly, "denied", false, "only list denied attempts")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintln(os.Stderr, "audit db error:", err)
		return 1
	}

	store, err := sqlite.Open(dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "audit db error:", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	events, err := store.ListAccessEvents(ctx, limit, deniedOnly)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list access events:", err)
		return 1
	}
	for _, e := range events {
		decision := "denied"
		if e.Allowed {
			decision = "allowed"
		}
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", e.ID, e.CreatedAt.UTC().Format(time.RFC3339), decision, e.RemoteIP)
	}
	return 0
}
