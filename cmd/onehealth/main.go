// Command onehealth is the operator CLI: risk reports, alerts, dataset export,
// indicator imports and the score archive.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/Skufu/onehealth/internal/config"
	"github.com/Skufu/onehealth/internal/store"
)

const usage = `usage: onehealth <command> [flags]

Commands:
  report     risk score and level per region
  alerts     One Health alerts for the current data
  export     write every record as a JSON dataset
  import     load an HXL indicator CSV or an FVR communiqué JSON
  snapshot   archive the current scores now
  history    archived scores, newest first

Run "onehealth <command> --help" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 || os.Args[1] == "-h" || os.Args[1] == "--help" {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})).
		With("service", "onehealth-cli")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, closeStore, err := store.Open(ctx, cfg.StoreOptions(), logger)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	a := newApp(st, cfg, logger)
	a.progress = true
	err = a.run(ctx, os.Args[1], os.Args[2:], os.Stdout)
	closeStore()
	switch {
	case errors.Is(err, pflag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, "error:", err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	case err != nil:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
