// Command repostats is the minimal process entry point wiring config,
// scanner manager, and the Event Controller together. Full argument
// parsing and plugin table rendering are intentionally out of scope —
// it exists only so this module has a runnable root.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	metrics "github.com/rcrowley/go-metrics"
	"github.com/rs/zerolog"

	"github.com/repostats/repostats/internal/app"
	"github.com/repostats/repostats/internal/controller"
	"github.com/repostats/repostats/internal/notify"
	"github.com/repostats/repostats/internal/plugin/dump"
	"github.com/repostats/repostats/internal/queue"
	"github.com/repostats/repostats/internal/revision"
	"github.com/repostats/repostats/internal/scanner"
	"github.com/repostats/repostats/internal/scanner/checkout"
	"github.com/repostats/repostats/pkg/cfg"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("repostats", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	repoPaths := fs.Args()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	if len(repoPaths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: repostats [-config path] <repository-path>...")
		return 1
	}

	config := cfg.NewDefaultConfig()
	if *configPath != "" {
		loaded, err := cfg.Load(*configPath)
		if err != nil {
			logger.Error().Err(err).Str("path", *configPath).Msg("repostats: failed to load config")
			return 1
		}
		config = loaded
	}

	bus := notify.NewBus(&logger)
	defer bus.Close()

	broker := queue.New(queue.Options{
		MaxSize:              config.Broker.MaxSize,
		MemoryThresholdBytes: config.Broker.MemoryThresholdBytes,
		Publisher:            bus,
	})
	defer broker.Close()

	checkouts := checkout.NewManager(config.Checkout.Template, config.Checkout.KeepFiles, config.Checkout.ForceOverwrite, &logger)
	defer checkouts.CleanupAll()

	manager := scanner.NewManager(broker, bus, checkouts, &logger)
	requirements := scanner.ReqRepositoryInfo | scanner.ReqCommits | scanner.ReqFileChanges
	for _, path := range repoPaths {
		if _, err := manager.AddRepository(path, requirements); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("repostats: failed to register repository")
			return 1
		}
	}

	controller.Register("dump", func(ctx context.Context) (controller.Controller, error) {
		consumer := dump.NewConsumer(broker, os.Stdout, &logger)
		go func() {
			if err := consumer.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("repostats: dump consumer stopped with error")
			}
		}()
		return consumer, nil
	})

	query := revision.NewDefaultQueryParams()
	query.MergeCommits = config.Query.MergeCommits

	appConfig := app.Config{
		CompletionTimeout: config.Controller.CompletionTimeout.Duration(),
		ShutdownTimeout:   config.Controller.ShutdownTimeout.Duration(),
		Notifier:          bus,
	}

	_, signaled, payloadErr := app.GuardWithConfig(context.Background(), appConfig, &logger, func(ctx context.Context) (map[string]error, error) {
		results := manager.StartScanning(ctx, query, nil)
		for scannerID, scanErr := range results {
			if scanErr != nil {
				logger.Error().Err(scanErr).Str("scanner_id", scannerID).Msg("repostats: scan failed")
			}
		}
		return results, nil
	})

	broker.MemoryStats() // refresh the byte-size gauge before the snapshot below
	queue.LogMetrics(metrics.DefaultRegistry, &logger)

	switch {
	case signaled:
		return 130
	case payloadErr != nil:
		logger.Error().Err(payloadErr).Msg("repostats: payload failed")
		return 1
	default:
		return 0
	}
}
