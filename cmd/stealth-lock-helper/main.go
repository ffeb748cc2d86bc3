// stealth-lock-helper verifies that the password read from stdin belongs to
// a local account. It is a single-shot check for screen-lock front ends:
// the password is read as one line, verified against the host's
// authentication backends in order of preference, and discarded.
//
// Exit codes:
//
//	0 - authentication successful
//	1 - authentication failed
//	2 - no authentication method could render a verdict
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/user"

	"github.com/RisPNG/stealth-lock/internal/config"
	"github.com/RisPNG/stealth-lock/internal/verify"
)

const (
	exitAuthenticated = 0
	exitRejected      = 1
	exitUnavailable   = 2
)

var (
	configPath = flag.String("config", "", "Path to configuration file (default: OS-appropriate path)")
	userName   = flag.String("user", "", "Account to verify (default: the invoking user)")
	debugMode  = flag.Bool("debug", false, "Log per-step status to stderr")
)

func main() {
	flag.Parse()

	// Diagnostics are advisory only: they go to stderr and never change
	// the exit code.
	logLevel := slog.LevelWarn
	if *debugMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(exitUnavailable)
	}

	username := *userName
	if username == "" {
		username = currentUsername()
	}
	if username == "" {
		fmt.Fprintln(os.Stderr, "could not determine username")
		os.Exit(exitUnavailable)
	}

	secret, err := verify.ReadSecretLine(os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to read password:", err)
		os.Exit(exitRejected)
	}
	if len(secret) == 0 {
		fmt.Fprintln(os.Stderr, "no password provided")
		os.Exit(exitRejected)
	}

	res := verify.New(cfg).Verify(verify.Credential{Username: username, Secret: secret})
	logger.Debug("verification complete", "username", username, "outcome", res.Outcome.String(), "reason", res.Reason)

	switch res.Outcome {
	case verify.Authenticated:
		os.Exit(exitAuthenticated)
	case verify.Rejected:
		os.Exit(exitRejected)
	default:
		fmt.Fprintln(os.Stderr, "no authentication method available")
		os.Exit(exitUnavailable)
	}
}

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return os.Getenv("LOGNAME")
}
