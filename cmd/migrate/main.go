package main

// Run database migrations:
//   go run ./cmd/migrate            # up
//   go run ./cmd/migrate down       # roll back the last migration
//   go run ./cmd/migrate version

import (
	"context"
	"fmt"
	"log"
	"os"

	"cvbot-backend/internal/shared/config"
	"cvbot-backend/internal/shared/storage/db"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	opts := db.OptionsFromEnv(db.OptionsFor(db.ProfileCLI, 0))
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		log.Printf("failed to connect database: %v", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	switch command {
	case "up":
		err = db.RunMigrations(ctx, sqlDB)
	case "down":
		err = db.RollbackLast(ctx, sqlDB)
	case "version":
		var v int64
		v, err = db.MigrationVersion(ctx, sqlDB)
		if err == nil {
			fmt.Println(v)
		}
	default:
		err = fmt.Errorf("unknown command %q (want up, down or version)", command)
	}
	if err != nil {
		log.Printf("migrate %s: %v", command, err)
		sqlDB.Close()
		os.Exit(1)
	}
}
