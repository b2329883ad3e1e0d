// This script is a small convenience tool for manipulating user accounts in
// the configured server stores.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/z060142/FireNET/internal/auth"
	"github.com/z060142/FireNET/internal/core"
	"github.com/z060142/FireNET/internal/db"
	"github.com/z060142/FireNET/internal/storage/redis"
	"gorm.io/driver/postgres"
)

var (
	config = flag.String("config", "./", "Path to the directory containing the server config file")
	add    = flag.Bool("add", false, "Add an account.")
	ban    = flag.Bool("ban", false, "Suspend an account.")
	unban  = flag.Bool("unban", false, "Lift an account suspension.")
	help   = flag.Bool("help", false, "Print this usage info.")
)

func main() {
	flag.Parse()

	if *help {
		flag.Usage()
		os.Exit(0)
	}
	if flag.NFlag() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	worker, cleanup, err := initDBWorker()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer cleanup()

	ctx := context.Background()
	switch {
	case *add:
		login := scanInput("Login")
		password := scanInput("Password")
		err = addAccount(ctx, worker, login, password)
	case *ban:
		err = setBanned(ctx, worker, scanInput("Login"), true)
	case *unban:
		err = setBanned(ctx, worker, scanInput("Login"), false)
	default:
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// initDBWorker wires the same account backend the server uses, so the tool
// and the server always agree on where records live.
func initDBWorker() (*db.Worker, func(), error) {
	cfg := core.LoadConfig(*config)

	store, err := redis.New(redis.Config{
		URL:          cfg.Database.Redis.URL,
		PoolSize:     cfg.Database.Redis.PoolSize,
		MinIdleConns: cfg.Database.Redis.MinIdleConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	cleanup := func() { _ = store.Close() }

	if cfg.Database.AccountsEngine == "sql" {
		sqlDB, err := db.OpenSQL(postgres.Open(cfg.DatabaseURL()), false)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("error connecting to the accounts database: %w", err)
		}
		return db.NewSQLWorker(store, sqlDB), cleanup, nil
	}
	return db.NewWorker(store), cleanup, nil
}

func scanInput(prompt string) string {
	fmt.Printf("%s: ", prompt)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Scan()
	return scanner.Text()
}

func addAccount(ctx context.Context, worker *db.Worker, login, password string) error {
	user, err := auth.CreateUser(ctx, worker, login, password)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	fmt.Println("created account with uid:", user.UID)
	return nil
}

func setBanned(ctx context.Context, worker *db.Worker, login string, banned bool) error {
	if err := worker.SetBanned(ctx, login, banned); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if banned {
		fmt.Println("suspended account")
	} else {
		fmt.Println("lifted suspension")
	}
	return nil
}
