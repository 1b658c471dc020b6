// Command relayerd is the server-side process that keeps a pool contract's
// Merkle tree synced. Wiring a
// concrete ChainReader/ChainWriter (JSON-RPC against an EVM node) and a
// concrete RelayerClient HTTP surface is left to deployment configuration;
// this entry point assembles the components this module owns and runs
// their sync loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/duststealth/core/internal/relayertree"
	"github.com/duststealth/core/pkg/collab"
)

const banner = `
relayerd v%s
syncing the deposit-commitment tree
`

const version = "0.1.0"

// Config holds relayerd's runtime configuration.
type Config struct {
	ChainID      uint64
	SyncInterval time.Duration
	LogLevel     string
}

func parseFlags() *Config {
	cfg := &Config{}
	flag.Uint64Var(&cfg.ChainID, "chain-id", 1, "chain id of the pool contract to track")
	flag.DurationVar(&cfg.SyncInterval, "sync-interval", 15*time.Second, "deposit-queue poll interval")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseFlags()
	fmt.Printf(banner, version)

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	if err := run(ctx, cfg, log); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, log *logrus.Logger) error {
	entry := log.WithField("chainId", cfg.ChainID)
	entry.Info("starting relayer tree sync loop")

	// TODO: replace with a JSON-RPC ChainReader/ChainWriter pair and an HTTP
	// RelayerClient once the pool contract's deployed address is known.
	var chain collab.ChainReader
	var writer collab.ChainWriter
	if chain == nil || writer == nil {
		entry.Warn("no chain reader/writer configured; relayerd has nothing to sync against")
		<-ctx.Done()
		return nil
	}

	mgr := relayertree.NewManager(chain, writer)
	ticker := time.NewTicker(cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			entry.Info("stopped")
			return nil
		case <-ticker.C:
			size, err := mgr.Sync(ctx, cfg.ChainID)
			if err != nil {
				entry.WithError(err).Error("sync failed")
				continue
			}
			entry.WithField("leafCount", size).Debug("synced")
		}
	}
}
