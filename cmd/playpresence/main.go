package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/five82/playpresence/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (optional)")
	prefsPath := flag.String("prefs", "", "override preferences path (optional)")
	headless := flag.Bool("headless", false, "run without the status screen and log to stderr")
	rpDisabled := flag.Bool("rp-disabled-on-start", false, "start with rich presence disabled")
	applicationID := flag.String("application-id", "", "Discord application id for titles without an official one")
	logLevel := flag.String("log-level", "", "trace, debug, info, warn or error (optional)")
	noFileLogging := flag.Bool("no-file-logging", false, "do not write the JSON log file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath:              *configPath,
		PrefsPath:               *prefsPath,
		Headless:                *headless,
		PresenceDisabledOnStart: *rpDisabled,
		ApplicationID:           *applicationID,
		LogLevel:                *logLevel,
		NoFileLogging:           *noFileLogging,
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "playpresence: %v\n", err)
		return 1
	}
	return 0
}
