// The firenet command runs the game services backend: it terminates TLS
// client connections and serves the auth, profile, shop, friend, and chat
// query families on top of the configured stores.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"gorm.io/driver/postgres"

	"github.com/z060142/FireNET/internal/core"
	"github.com/z060142/FireNET/internal/db"
	"github.com/z060142/FireNET/internal/query"
	"github.com/z060142/FireNET/internal/registry"
	"github.com/z060142/FireNET/internal/server"
	"github.com/z060142/FireNET/internal/shop"
	"github.com/z060142/FireNET/internal/storage/redis"
)

// shutdownGrace bounds the wait for in-flight connections on SIGTERM.
const shutdownGrace = 30 * time.Second

func main() {
	app := &cli.App{
		Name:  "firenet",
		Usage: "game services backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./",
				Usage:   "path to the directory containing the server config file",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	config := core.LoadConfig(c.String("config"))

	logger, err := core.NewLogger(config)
	if err != nil {
		return fmt.Errorf("error initializing logging: %w", err)
	}

	store, err := redis.New(redis.Config{
		URL:          config.Database.Redis.URL,
		PoolSize:     config.Database.Redis.PoolSize,
		MinIdleConns: config.Database.Redis.MinIdleConns,
	})
	if err != nil {
		return fmt.Errorf("error connecting to redis: %w", err)
	}
	defer store.Close()

	worker, err := newDBWorker(config, store)
	if err != nil {
		return err
	}

	reg := registry.New(logger)
	deps := &query.Deps{
		Logger:   logger,
		Registry: reg,
		DB:       worker,
		Catalog:  shop.NewCatalog(config.ShopFile),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	s := server.New(config, logger, reg, deps)
	if err := s.Listen(ctx); err != nil {
		return err
	}

	<-signals
	logger.Info("waiting to shut down gracefully...")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer stopCancel()

	if err := s.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newDBWorker wires the account backend selected by the config: the KV
// store alone, or Postgres for the users table with the KV store keeping
// profiles and nicknames.
func newDBWorker(config *core.Config, store *redis.Storage) (*db.Worker, error) {
	switch config.Database.AccountsEngine {
	case "", "kv":
		return db.NewWorker(store), nil
	case "sql":
		sqlDB, err := db.OpenSQL(postgres.Open(config.DatabaseURL()), config.Debugging.DatabaseLoggingEnabled)
		if err != nil {
			return nil, fmt.Errorf("error connecting to the accounts database: %w", err)
		}
		return db.NewSQLWorker(store, sqlDB), nil
	default:
		return nil, fmt.Errorf("unsupported accounts engine: %q", config.Database.AccountsEngine)
	}
}
