// Command swapi-loader copies every SWAPI person into a relational store,
// one transaction per chunk, and prints the elapsed wall-clock time.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/swapi-loader/internal/config"
	"github.com/Sternrassler/swapi-loader/pkg/client"
	"github.com/Sternrassler/swapi-loader/pkg/logging"
	"github.com/Sternrassler/swapi-loader/pkg/metrics"
	"github.com/Sternrassler/swapi-loader/pkg/people"
	"github.com/Sternrassler/swapi-loader/pkg/pipeline"
	"github.com/Sternrassler/swapi-loader/pkg/store"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "swapi-loader: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	if _, err := run(ctx, cfg, os.Stdout); err != nil {
		stop()
		log.Fatal().Err(err).Str("error_class", string(client.ClassOf(err))).Msg("Load failed")
	}
	log.Debug().Dur("duration", time.Since(start)).Msg("Exiting")
}

// run performs one load and writes the elapsed time to out.
func run(ctx context.Context, cfg *config.Config, out io.Writer) (pipeline.Summary, error) {
	start := time.Now()

	if cfg.MetricsAddr != "" {
		metricsCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.MetricsAddr); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	s, err := openStore(ctx, cfg)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer s.Close()

	api, err := client.New(cfg.Client())
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer api.Close()

	fetcher := people.NewFetcher(api, people.ResolveMode(cfg.ResolveMode))

	p, err := pipeline.New(fetcher, s, cfg.Pipeline())
	if err != nil {
		return pipeline.Summary{}, err
	}

	log.Info().
		Str("base_url", cfg.BaseURL).
		Str("driver", cfg.DBDriver).
		Str("storage_mode", cfg.StorageMode).
		Str("resolve_mode", cfg.ResolveMode).
		Msg("Starting swapi-loader")

	summary, err := p.Run(ctx)
	if err != nil {
		return summary, err
	}

	fmt.Fprintln(out, time.Since(start))
	return summary, nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		return store.OpenSQLite(ctx, cfg.SQLitePath, cfg.StoreOptions())
	default:
		return store.Open(ctx, cfg.Postgres(), cfg.StoreOptions())
	}
}
