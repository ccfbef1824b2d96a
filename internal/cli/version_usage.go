package cli

import (
	"fmt"
	"io"

	"github.com/koltyakov/posbridge/internal/versionutil"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `posbridge - websocket endpoint for POS client devices

Greets each allowlisted device with the service identity and acknowledges
every message it sends.

Usage:
  posbridge                             Start the service (same as serve)
  posbridge serve [flags]               Start the service
  posbridge audit list                  Print recent access decisions
  posbridge audit list --denied         Print only refused upgrade attempts
  posbridge version                     Print version
  posbridge help                        Show this help

Environment Variables:
  POSBRIDGE_CONFIG        Optional INI file (keys in [service] or top level)
  POSBRIDGE_UUID          Instance id sent to devices (generated when empty)
  POSBRIDGE_KEY           Shared key sent to devices (required)
  POSBRIDGE_PORT          Listen port (default: 8080)
  POSBRIDGE_ALLOWED_IPS   Comma separated device IPs (loopback is always allowed)
  POSBRIDGE_URL_HOME      Body served on GET /
  POSBRIDGE_AUDIT_DB      SQLite path for access decisions (disabled when empty)
  POSBRIDGE_LOG_LEVEL     Log level: debug|info|warn|error (default: info)

Run "posbridge serve -h" for the full flag list.`)
}

// Version is set at build time via -ldflags.
// It is also the commit reported to devices when none is configured.
var Version = "dev"

func printVersion(w io.Writer) {
	fmt.Fprintln(w, "posbridge", versionutil.Display(Version))
}
