// Command cached is a minimal demo entrypoint wiring cachecore's
// config, logging, and Cache façade together: load Config from the
// environment, build a logger from it, construct a Cache, run a
// handful of commands against it, and shut down cleanly on SIGINT/
// SIGTERM. It is not a network server; the memcached wire protocol
// itself is out of scope (spec.md Non-goals).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/tempuscache/cachecore"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cached:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := cachecore.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	cache := cachecore.New(cfg.Options(logger)...)
	defer cache.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	demo(cache, logger)

	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

func demo(cache *cachecore.Cache, logger *zap.Logger) {
	key := cachecore.NewKeyString("greeting")

	if _, cas := cache.Set(key, cachecore.Element{Data: []byte("hello")}); cas != 0 {
		logger.Info("set", zap.String("key", key.String()), zap.Uint64("cas", cas))
	}

	if e, ok := cache.Get(key); ok {
		logger.Info("get", zap.String("key", key.String()), zap.ByteString("data", e.Data))
	}

	counter := cachecore.NewKeyString("counter")
	cache.Set(counter, cachecore.Element{Data: []byte("0")})
	if nv, _, err := cache.Incr(counter, 5); err == nil {
		logger.Info("incr", zap.Uint64("value", nv))
	}

	cache.DelayDelete(key, 500*time.Millisecond)
	if _, ok := cache.Get(key); ok {
		logger.Warn("expected key to be blocked after delayed delete")
	}

	stat := cache.Stat()
	logger.Info("stats",
		zap.Int64("curr_items", stat.CurrItems),
		zap.Uint64("cmd_get", stat.CmdGets),
		zap.Uint64("cmd_set", stat.CmdSets),
	)
}
