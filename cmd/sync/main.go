// Package main runs one unit of work and prints its summary as JSON.
// It is meant for external schedulers (cron, CI jobs):
//
//	sync -secret $CRON_SECRET -source clanker
//	sync -secret $CRON_SECRET -all
//	sync -secret $CRON_SECRET -prices
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bytedance/sonic"

	"launchpad-index/internal/app"
	"launchpad-index/internal/config"
	"launchpad-index/internal/domain"
	"launchpad-index/internal/httpapi"
	"launchpad-index/internal/logging"
)

func main() {
	var (
		source string
		all    bool
		prices bool
		secret string
	)
	cfg, err := config.Load("sync", os.Args[1:], func(fs *flag.FlagSet) {
		fs.StringVar(&source, "source", "", "Sync one source (e.g. clanker)")
		fs.BoolVar(&all, "all", false, "Sync every configured source")
		fs.BoolVar(&prices, "prices", false, "Refresh prices of stored records")
		fs.StringVar(&secret, "secret", "", "Trigger secret, must match CRON_SECRET")
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	modes := 0
	for _, set := range []bool{source != "", all, prices} {
		if set {
			modes++
		}
	}
	if modes != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of -source, -all or -prices is required")
		os.Exit(2)
	}
	if err := httpapi.CheckSecret(cfg.HTTP.CronSecret, secret); err != nil {
		fmt.Fprintf(os.Stderr, "refused: %v\n", err)
		os.Exit(1)
	}
	if source != "" && !domain.Source(source).IsValid() {
		fmt.Fprintf(os.Stderr, "unknown source %q\n", source)
		os.Exit(2)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create stores")
	}
	defer a.Close()

	var result any
	switch {
	case source != "":
		var summary *domain.SyncSummary
		if summary, err = a.Engine.RunSync(ctx, domain.Source(source)); summary != nil {
			result = summary
		}
	case all:
		var summaries []*domain.SyncSummary
		if summaries, err = a.Engine.RunAll(ctx); summaries != nil {
			result = summaries
		}
	case prices:
		var summary *domain.RefreshSummary
		if summary, err = a.Refresher.RefreshPrices(ctx); summary != nil {
			result = summary
		}
	}

	// Cancelled runs still print their partial summary.
	if result != nil {
		if encErr := printSummary(os.Stdout, result); encErr != nil {
			logger.Error().Err(encErr).Msg("failed to encode summary")
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Msg("run cancelled")
		} else {
			logger.Error().Err(err).Msg("run failed")
		}
		a.Close()
		os.Exit(1)
	}
}

// printSummary writes result as indented JSON.
func printSummary(w io.Writer, result any) error {
	out, err := sonic.ConfigStd.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
