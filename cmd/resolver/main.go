package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/streamforge/resolver/internal/bandwidth"
	"github.com/streamforge/resolver/internal/cache"
	"github.com/streamforge/resolver/internal/core/config"
	"github.com/streamforge/resolver/internal/core/domain"
	"github.com/streamforge/resolver/internal/health"
	"github.com/streamforge/resolver/internal/racer"
	"github.com/streamforge/resolver/internal/registry"
	"github.com/streamforge/resolver/internal/resolver"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	isDebug := flag.Bool("debug", false, "Enable debug logging")
	network := flag.String("network", "wifi", "Assumed network (wifi, cellular-3g, cellular-4g, cellular-5g)")
	flag.Parse()

	// Load Configuration first (before setting up logger)
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	if *isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})))
	slog.Info("Logger initialized", "level", slogLevel.String())

	// Cache tiers, fastest first. A tier that fails to come up is dropped,
	// not fatal.
	memTier := cache.NewMemoryTier(cfg.Cache.Memory)
	defer memTier.Stop()
	tiers := []cache.Tier{memTier}

	var diskTier *cache.DiskTier
	if cfg.Cache.Disk.Enabled {
		diskTier, err = cache.NewDiskTier(cfg.Cache.Disk)
		if err != nil {
			slog.Warn("Disk tier unavailable", "error", err)
		} else {
			defer diskTier.Close()
			tiers = append(tiers, diskTier)
		}
	}

	var redisTier *cache.RedisTier
	if cfg.Cache.Redis.Enabled {
		redisTier, err = cache.NewRedisTier(cfg.Cache.Redis)
		if err != nil {
			slog.Warn("Redis tier unavailable", "error", err)
		} else {
			defer redisTier.Close()
			tiers = append(tiers, redisTier)
		}
	}

	hierarchy := cache.NewHierarchy(tiers...)

	// Registry and engine
	reg, err := registry.Build(cfg.Sources, extractorTable())
	if err != nil {
		slog.Error("Failed to build source registry", "error", err)
		os.Exit(1)
	}
	monitor := health.NewMonitor()
	selector := registry.NewSelector(reg, monitor, cfg.Racer.MaxChainLength)
	race := racer.New(monitor, cfg.Racer.Concurrency, cfg.Racer.Headroom)

	net := bandwidth.NewWatcher()
	net.Observe(observationFor(*network))

	engine := resolver.NewEngine(cfg.Resolver, hierarchy, selector, race, net, monitor)
	slog.Info("Engine initialized", "sources", reg.Len(), "tiers", len(tiers))

	// Setup Context with Cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received signal, shutting down...", "signal", sig)
		cancel()
	}()

	// Resolve every content id given on the command line.
	for _, arg := range flag.Args() {
		desc, err := engine.Resolve(ctx, domain.ContentID(arg), resolver.Options{})
		if err != nil {
			slog.Error("Resolution failed", "content", arg, "error", err)
			continue
		}
		out, _ := json.MarshalIndent(desc, "", "  ")
		os.Stdout.Write(append(out, '\n'))
	}

	stats := engine.CacheStats()
	slog.Info("Cache stats", "misses", stats.Misses, "coalesced", stats.Coalesced)
}

func observationFor(name string) bandwidth.Observation {
	switch name {
	case "wifi":
		return bandwidth.Observation{Connection: bandwidth.ConnectionWifi}
	case "cellular-2g":
		return bandwidth.Observation{Connection: bandwidth.ConnectionCellular, Generation: bandwidth.Cellular2G, Metered: true}
	case "cellular-3g":
		return bandwidth.Observation{Connection: bandwidth.ConnectionCellular, Generation: bandwidth.Cellular3G, Metered: true}
	case "cellular-4g":
		return bandwidth.Observation{Connection: bandwidth.ConnectionCellular, Generation: bandwidth.Cellular4G, Metered: true}
	case "cellular-5g":
		return bandwidth.Observation{Connection: bandwidth.ConnectionCellular, Generation: bandwidth.Cellular5G, Metered: true}
	}
	return bandwidth.Observation{Connection: bandwidth.ConnectionUnknown}
}
