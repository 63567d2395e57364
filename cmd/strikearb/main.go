// Command strikearb is the entry point for the strike arbitrage engine. Each
// invocation runs one command and exits; an external scheduler provides the
// cadence.
//
//	strikearb [-config path] scan
//	strikearb [-config path] trade [-live] [-cycle-id id]
//	strikearb [-config path] resolve -key K -status confirmed|failed
//	strikearb [-config path] archive
//	strikearb encrypt-key -in key.pem -out key.enc.json
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/strikearb/internal/app"
	"github.com/alanyoungcy/strikearb/internal/config"
	"github.com/alanyoungcy/strikearb/internal/crypto"
	"github.com/alanyoungcy/strikearb/internal/cycle"
	"github.com/alanyoungcy/strikearb/internal/domain"
)

const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	global := flag.NewFlagSet("strikearb", flag.ContinueOnError)
	configPath := global.String("config", "strikearb.toml", "path to configuration file")
	if err := global.Parse(args); err != nil {
		return exitConfig
	}
	if global.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: strikearb [-config path] scan|trade|resolve|archive|encrypt-key")
		return exitConfig
	}
	cmd, cmdArgs := global.Arg(0), global.Args()[1:]

	if cmd == "encrypt-key" {
		return encryptKey(cmdArgs)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return exitConfig
	}
	logger, logCloser := app.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application := app.New(cfg, logger)
	defer application.Close()

	switch cmd {
	case "scan":
		report, err := application.Scan(ctx)
		if printErr := printJSON(report); printErr != nil {
			logger.Error("write report", slog.String("error", printErr.Error()))
		}
		return exitCode(logger, "scan", err)

	case "trade":
		fs := flag.NewFlagSet("trade", flag.ContinueOnError)
		live := fs.Bool("live", false, "submit orders (requires venue credentials)")
		cycleID := fs.String("cycle-id", "", "override the derived cycle id")
		if err := fs.Parse(cmdArgs); err != nil {
			return exitConfig
		}
		snap, err := application.Trade(ctx, cycle.TradeOptions{Live: *live, CycleID: *cycleID})
		if errors.Is(err, domain.ErrLockHeld) {
			return exitOK
		}
		if snap.CycleID != "" {
			if printErr := printJSON(snap); printErr != nil {
				logger.Error("write snapshot", slog.String("error", printErr.Error()))
			}
		}
		return exitCode(logger, "trade", err)

	case "resolve":
		fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
		key := fs.String("key", "", "idempotency key of the ambiguous order")
		status := fs.String("status", "", "confirmed or failed")
		if err := fs.Parse(cmdArgs); err != nil {
			return exitConfig
		}
		if *key == "" || *status == "" {
			fmt.Fprintln(os.Stderr, "resolve: -key and -status are required")
			return exitConfig
		}
		order, err := application.Resolve(ctx, *key, domain.OrderStatus(*status))
		if err != nil {
			return exitCode(logger, "resolve", err)
		}
		if printErr := printJSON(order); printErr != nil {
			logger.Error("write order", slog.String("error", printErr.Error()))
		}
		return exitOK

	case "archive":
		res, err := application.Archive(ctx)
		if errors.Is(err, app.ErrBlobDisabled) {
			logger.Error("archive requires [s3] enabled = true")
			return exitConfig
		}
		if err != nil {
			return exitCode(logger, "archive", err)
		}
		if printErr := printJSON(res); printErr != nil {
			logger.Error("write result", slog.String("error", printErr.Error()))
		}
		return exitOK

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		return exitConfig
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(logger *slog.Logger, cmd string, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, context.Canceled):
		logger.Warn(cmd+": interrupted", slog.String("error", err.Error()))
		return exitRuntime
	case cycle.IsFatalConfig(err):
		logger.Error(cmd+": configuration error", slog.String("error", err.Error()))
		return exitConfig
	default:
		logger.Error(cmd+": failed", slog.String("error", err.Error()))
		return exitRuntime
	}
}

func encryptKey(args []string) int {
	fs := flag.NewFlagSet("encrypt-key", flag.ContinueOnError)
	in := fs.String("in", "", "PEM private key to encrypt")
	out := fs.String("out", "", "destination for the encrypted key file")
	passwordEnv := fs.String("password-env", "STRIKEARB_KALSHI_KEY_PASSWORD", "environment variable holding the password")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}
	if *in == "" || *out == "" {
		fmt.Fprintln(os.Stderr, "encrypt-key: -in and -out are required")
		return exitConfig
	}
	password := os.Getenv(*passwordEnv)
	if password == "" {
		fmt.Fprintf(os.Stderr, "encrypt-key: %s is not set\n", *passwordEnv)
		return exitConfig
	}

	pemBytes, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encrypt-key: %v\n", err)
		return exitConfig
	}
	enc, err := crypto.EncryptKey(pemBytes, password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encrypt-key: %v\n", err)
		return exitConfig
	}
	if err := os.WriteFile(*out, enc, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "encrypt-key: %v\n", err)
		return exitRuntime
	}
	return exitOK
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
