package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

func Run(args []string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return run(ctx, args, os.Stdout)
}

func run(ctx context.Context, args []string, out io.Writer) int {
	if len(args) == 0 || (strings.HasPrefix(args[0], "-") && !isHelpArg(args[0])) {
		return runServe(ctx, args)
	}

	switch args[0] {
	case "serve":
		return runServe(ctx, args[1:])
	case "audit":
		return runAudit(ctx, args[1:], out)
	case "version":
		printVersion(out)
		return 0
	case "-h", "--help", "help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", args[0])
		printUsage(os.Stderr)
		return 2
	}
}

func isHelpArg(arg string) bool {
	return arg == "-h" || arg == "--help"
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
