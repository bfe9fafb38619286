// Command orbitrakd runs the orbitrak TCP request server: it loads a YAML
// config, wires a Registry bound to the go-satellite SGP4 provider and the
// Celestrak TLE source, and serves clients until interrupted.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nstitov/orbitrak/internal/config"
	"github.com/nstitov/orbitrak/internal/registry"
	"github.com/nstitov/orbitrak/internal/server"
	"github.com/nstitov/orbitrak/internal/sgp4provider"
	"github.com/nstitov/orbitrak/internal/tlecache"
	"github.com/nstitov/orbitrak/internal/tlesource"
)

func main() {
	configPath := flag.String("config", "orbitrak.yaml", "path to YAML configuration file")
	listenAddr := flag.String("listen", "", "TCP listen address (overrides config)")
	lengthPrefixed := flag.Bool("length-prefixed-framing", false, "use the opt-in length-prefixed wire framing instead of the default trailing-digit framing")
	updateAllTLEs := flag.Bool("update-all-tles", false, "refresh every registered satellite's cached TLE from Celestrak, then exit (tooling only, not a wire request)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("loading config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cache := tlecache.New(cfg.TleCacheDir, tlecache.WithLogger(logger))
	source := tlesource.NewCelestrakSource(
		tlesource.WithRateLimit(cfg.CelestrakRateLimit),
		tlesource.WithHTTPClient(&http.Client{Timeout: cfg.CelestrakTimeout}),
	)
	provider := sgp4provider.NewGoSatelliteProvider()

	reg := registry.New(
		provider,
		registry.WithLogger(logger),
		registry.WithTleSource(source),
		registry.WithTleCache(cache),
	)

	if *updateAllTLEs {
		logger.Info("refreshing all registered satellites' cached TLEs from Celestrak, then exiting")
		if err := reg.UpdateAllTLEs(ctx); err != nil {
			logger.Error("updating all TLEs", "error", err)
			os.Exit(1)
		}
		return
	}

	srvOpts := []server.Option{
		server.WithLogger(logger),
		server.WithTleCache(cache),
	}
	if *lengthPrefixed || cfg.LengthPrefixedFraming {
		srvOpts = append(srvOpts, server.WithLengthPrefixedFraming())
	}
	srv := server.New(reg, srvOpts...)

	logger.Info("orbitrakd starting", "listen_addr", cfg.ListenAddr, "tle_cache_dir", cfg.TleCacheDir)

	if err := srv.Serve(ctx, cfg.ListenAddr); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("orbitrakd shut down")
}
