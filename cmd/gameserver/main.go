package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/cardhall/gameserver/banlist"
	"github.com/cardhall/gameserver/config"
	"github.com/cardhall/gameserver/logger"
	"github.com/cardhall/gameserver/netx"
	"github.com/cardhall/gameserver/server"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logger.NewConsoleLogger(os.Stderr, "gameserver", zerolog.InfoLevel).
			Error("failed to load config", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := logger.NewConsoleLogger(os.Stderr, "gameserver", level)

	bans := buildBanlist(cfg, log)
	srv := server.New(cfg, log, bans)

	// Drain observer events into the log.
	go func() {
		for e := range srv.Events() {
			log.Info("event",
				logger.Field{Key: "kind", Value: e.Kind.String()},
				logger.Field{Key: "peer", Value: e.Peer},
				logger.Field{Key: "name", Value: e.Name},
				logger.Field{Key: "message", Value: e.Message})
		}
	}()

	gateway := netx.NewServer(cfg.ServerName, cfg.Addr, log, srv.OnAccept)
	if err := gateway.Start(); err != nil {
		log.Error("gateway start failed", logger.Field{Key: "error", Value: err})
		os.Exit(1)
	}

	var daemon *server.Daemon
	if cfg.DiscoveryAddr != "" {
		daemon, err = srv.ServeDiscovery(cfg.DiscoveryAddr)
		if err != nil {
			log.Error("discovery start failed", logger.Field{Key: "error", Value: err})
			gateway.Stop()
			os.Exit(1)
		}
	}

	<-ctx.Done()
	log.Info("shutting down")

	if daemon != nil {
		_ = daemon.Close()
	}
	gateway.Stop()
	log.Info("server exited gracefully")
}

// buildBanlist selects the ban list backend: a cached redis list when a
// redis address is configured, otherwise an in-memory list seeded from the
// configured banned addresses.
func buildBanlist(cfg *config.Config, log logger.Logger) banlist.Banlist {
	if cfg.RedisAddr == "" {
		return banlist.NewStatic(cfg.BannedIPs)
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	log.Info("using redis ban list", logger.Field{Key: "addr", Value: cfg.RedisAddr})
	return banlist.NewCached(banlist.NewRedis(client), 30*time.Second)
}
