package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tailored-agentic-units/storekit/config"
	"github.com/tailored-agentic-units/storekit/listener"
	"github.com/tailored-agentic-units/storekit/observability"
	"github.com/tailored-agentic-units/storekit/persistence"
	"github.com/tailored-agentic-units/storekit/registry"
	"github.com/tailored-agentic-units/storekit/store"
	"github.com/tailored-agentic-units/storekit/transport"
)

const persistencePlugin = "persistence"

func main() {
	var (
		configFile = flag.String("config", "", "Path to storekit config JSON file")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
		persistDir = flag.String("persist", "", "Directory for persisted store state; enables persistence (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configFile != "" {
		loaded, err := config.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *persistDir != "" {
		cfg.Persistence.Path = *persistDir
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	observability.RegisterObserver("slog", observability.NewSlogObserver(logger))

	observer, err := observability.GetObserver(cfg.Observer)
	if err != nil {
		log.Fatalf("Failed to select observer: %v", err)
	}

	listener.RegisterMetrics(prometheus.DefaultRegisterer)
	store.RegisterMetrics(prometheus.DefaultRegisterer)
	registry.RegisterMetrics(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg, err := registry.New(nil, nil,
		registry.WithName(cfg.Name),
		registry.WithObserver(observer),
		registry.WithContext(ctx),
	)
	if err != nil {
		log.Fatalf("Failed to create registry: %v", err)
	}

	if storage := persistence.NewStorage(&cfg.Persistence); storage != nil {
		p, err := persistence.New(ctx, storage, persistence.Options{
			Prefix:   cfg.Persistence.Prefix,
			Observer: observer,
		})
		if err != nil {
			log.Fatalf("Failed to load persisted state: %v", err)
		}
		logger.Info("persistence enabled", "path", cfg.Persistence.Path, "saved", p.Saved())
		if err := registry.RegisterPlugin(persistencePlugin, p.Plugin); err != nil {
			log.Fatalf("Failed to register persistence plugin: %v", err)
		}
		if !slices.Contains(cfg.Plugins, persistencePlugin) {
			cfg.Plugins = append(cfg.Plugins, persistencePlugin)
		}
	}

	for _, name := range cfg.Plugins {
		reg, err = reg.UseNamed(name, nil)
		if err != nil {
			log.Fatalf("Failed to apply plugin: %v", err)
		}
	}

	if err := registerBuiltinStores(reg, &cfg); err != nil {
		log.Fatalf("Failed to register stores: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle(transport.NewHandler(reg, transport.WithObserver(observer)))
	mux.Handle(cfg.Server.MetricsPath, promhttp.Handler())

	protocols := new(http.Protocols)
	protocols.SetHTTP1(true)
	protocols.SetUnencryptedHTTP2(true)

	server := &http.Server{
		Addr:      cfg.Server.Addr,
		Handler:   mux,
		Protocols: protocols,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("storekit listening", "addr", cfg.Server.Addr, "registry", reg.Name(), "stores", reg.Keys())
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if flush, ferr := persistence.Flusher(reg); ferr == nil {
			err = errors.Join(err, flush(shutdownCtx))
		}
		reg.Close()

		logger.Info("storekit stopped")
		return err
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("storekit failed: %v", err)
	}
}
