package main

// Operator CLI:
//   go run ./cmd/botctl credits grant whatsapp:5491100 3 --description "soporte"
//   go run ./cmd/botctl session reset whatsapp:5491100
//   go run ./cmd/botctl catalog validate ./catalog.yaml

import (
	"context"
	"fmt"
	"os"

	"cvbot-backend/internal/analyses"
	"cvbot-backend/internal/ledger"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/shared/config"
	"cvbot-backend/internal/shared/storage/db"
	"cvbot-backend/internal/users"
)

func main() {
	root := newRootCmd(connect)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect builds the services the CLI needs straight from Postgres; the chat
// transport and inference stack are not required.
func connect(ctx context.Context) (*services, error) {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.OptionsFor(db.ProfileCLI, 0)))
	if err != nil {
		return nil, err
	}
	userSvc := users.NewService(&users.PGRepo{DB: sqlDB})
	analysisSvc := analyses.NewService(&analyses.PGRepo{DB: sqlDB})
	return &services{
		Ledger:       ledger.NewPostgresService(ledger.NewPGStore(sqlDB), analysisSvc, userSvc),
		Sessions:     session.NewService(&session.PGRepo{DB: sqlDB}),
		FreeAnalyses: cfg.FreeCVAnalyses,
		CatalogFile:  cfg.CatalogFile,
		close:        func() { _ = sqlDB.Close() },
	}, nil
}
