// Command hyperdash serves a live Hyperliquid market dashboard: order book,
// trade tape and candle chart over SSE, with optional order submission
// through a locally stored API agent key.
//
// Usage:
//
//	hyperdash --config config.yaml
//	hyperdash --coin ETH --interval 15m
//	hyperdash --setup (interactive wizard)
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/vadiminshakov/hyperdash/config"
	"github.com/vadiminshakov/hyperdash/internal"
	"github.com/vadiminshakov/hyperdash/internal/services/feed"
	"github.com/vadiminshakov/hyperdash/internal/services/marketdata"
	"github.com/vadiminshakov/hyperdash/internal/services/submit"
	"github.com/vadiminshakov/hyperdash/internal/setup"
	"github.com/vadiminshakov/hyperdash/internal/storage/agentstore"
	"github.com/vadiminshakov/hyperdash/internal/web"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	runSetup := flag.Bool("setup", false, "run the interactive configuration wizard")
	cfg, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}
	if *runSetup {
		if err := setup.RunTUI(); err != nil {
			log.Fatal(err)
		}
		cfg, err = config.FromYaml("config.gen.yaml")
		if err != nil {
			log.Fatal(err)
		}
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	infoClient := marketdata.NewInfoClient(cfg.APIURL(), logger)
	assets, err := infoClient.Meta(ctx)
	if err != nil {
		logger.Fatal("failed to fetch asset universe", zap.Error(err))
	}

	feedClient := feed.NewClient(cfg.WSURL(), logger)
	if err := feedClient.Connect(ctx); err != nil {
		logger.Fatal("failed to connect to feed", zap.Error(err))
	}
	defer feedClient.Close()

	session := internal.NewMarketSession(
		internal.FeedAdapter{Client: feedClient},
		infoClient,
		assets,
		cfg.BookRows,
		cfg.SeedBuckets,
		logger,
	)
	defer session.Close()

	if err := session.Start(); err != nil {
		logger.Fatal("failed to start market session", zap.Error(err))
	}
	if err := session.Select(ctx, cfg.Coin, cfg.Interval); err != nil {
		logger.Fatal("failed to select market",
			zap.String("coin", cfg.Coin),
			zap.Error(err))
	}

	var submitter *submit.Submitter
	if cfg.OwnerAddress != "" {
		store, err := agentstore.NewStore("")
		if err != nil {
			logger.Fatal("failed to open agent store", zap.Error(err))
		}
		submitter, err = submit.NewSubmitterFromStore(store, cfg.OwnerAddress, cfg.APIURL(), logger)
		if err != nil {
			logger.Warn("trading disabled", zap.Error(err))
			submitter = nil
		} else {
			logger.Info("trading enabled", zap.String("owner", cfg.OwnerAddress))
		}
	}

	var server *web.Server
	if submitter != nil {
		server = web.NewServer(cfg.ListenAddr, session, submitter, logger)
	} else {
		server = web.NewServer(cfg.ListenAddr, session, nil, logger)
	}

	logger.Info("dashboard listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("network", cfg.Network),
		zap.String("coin", cfg.Coin))

	if err := server.Start(ctx); err != nil {
		logger.Fatal("web server failed", zap.Error(err))
	}
}
