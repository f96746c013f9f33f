package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/doublescoop/punto/api/config"
	"github.com/doublescoop/punto/api/handlers"
	"github.com/doublescoop/punto/api/metrics"
	"github.com/doublescoop/punto/ledger/pkg/review"
	"github.com/doublescoop/punto/ledger/pkg/store"
	"github.com/doublescoop/punto/ledger/pkg/treasury"
	"github.com/doublescoop/punto/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr  = "0.0.0.0:8080"
	defaultMetricsAddr = "0.0.0.0:9090"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "Enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "Address to listen on for the API (or set PUNTO_LISTEN_ADDR env var)")
	metricsAddrFlag := flag.String("metrics-addr", defaultMetricsAddr, "Address to listen on for prometheus metrics (or set PUNTO_METRICS_ADDR env var)")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 30*time.Second, "Maximum time to wait for in-flight requests during graceful shutdown")
	flag.Parse()

	// Best effort; production config comes from real env vars.
	_ = godotenv.Load()

	if env := os.Getenv("PUNTO_LISTEN_ADDR"); env != "" {
		*listenAddrFlag = env
	}
	if env := os.Getenv("PUNTO_METRICS_ADDR"); env != "" {
		*metricsAddrFlag = env
	}

	log := logger.New(*verboseFlag)

	if err := config.LoadPostgres(); err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer config.ClosePostgres()

	st, err := store.New(store.Config{Logger: log, Pool: config.PgPool})
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	engine, err := review.New(review.Config{Logger: log, Submissions: st, Payments: st})
	if err != nil {
		return fmt.Errorf("failed to create review engine: %w", err)
	}

	calc, err := treasury.New(treasury.Config{Logger: log, Ledger: st})
	if err != nil {
		return fmt.Errorf("failed to create treasury calculator: %w", err)
	}

	api, err := handlers.New(handlers.Config{
		Logger:   log,
		Store:    st,
		Engine:   engine,
		Treasury: calc,
	})
	if err != nil {
		return fmt.Errorf("failed to create api: %w", err)
	}

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
	handlers.SetBuildInfo(version, commit, date)

	apiSrv := &http.Server{
		Addr:              *listenAddrFlag,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              *metricsAddrFlag,
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("api listening", "address", apiSrv.Addr)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to listen and serve api: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("prometheus metrics listening", "address", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to listen and serve metrics: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "reason", gctx.Err())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), *shutdownTimeoutFlag)
		defer shutdownCancel()

		var errs []error
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown api server: %w", err))
		}
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown metrics server: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
