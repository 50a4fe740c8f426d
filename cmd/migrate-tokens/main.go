// Command migrate-tokens encrypts OAuth tokens that were stored before
// ENCRYPTION_KEY was configured.
//
// Usage:
//
//	migrate-tokens [--dry-run]
//
// It reads DB_DSN and ENCRYPTION_KEY like the bot does. Each plaintext row is
// read and written back through the encrypting token store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/onnwee/battlesheet/config"
	"github.com/onnwee/battlesheet/crypto"
	"github.com/onnwee/battlesheet/db"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	flag.Parse()
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.EncryptionKey == "" {
		slog.Error("ENCRYPTION_KEY environment variable is required for migration")
		os.Exit(1)
	}
	enc, err := crypto.NewAESEncryptor(cfg.EncryptionKey)
	if err != nil {
		slog.Error("failed to initialize encryptor", slog.Any("error", err))
		os.Exit(1)
	}
	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		slog.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.PingContext(ctx); err != nil {
		slog.Error("failed to ping database", slog.Any("error", err))
		os.Exit(1)
	}
	n, err := migrateTokens(ctx, db.NewTokenStore(database, nil), db.NewTokenStore(database, enc), *dryRun, logger)
	if err != nil {
		slog.Error("migration failed", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("migration completed successfully", slog.Int("migrated", n), slog.Bool("dry_run", *dryRun))
}

// plainStore reads tokens without decrypting them.
type plainStore interface {
	PlaintextProviders(ctx context.Context) ([]string, error)
	Get(ctx context.Context, provider string) (db.Token, bool, error)
}

type sealedStore interface {
	Upsert(ctx context.Context, provider string, tok db.Token) error
}

// migrateTokens rewrites every plaintext token through sealed and returns how
// many were (or, in a dry run, would be) migrated.
func migrateTokens(ctx context.Context, plain plainStore, sealed sealedStore, dryRun bool, log *slog.Logger) (int, error) {
	providers, err := plain.PlaintextProviders(ctx)
	if err != nil {
		return 0, fmt.Errorf("list plaintext tokens: %w", err)
	}
	if len(providers) == 0 {
		log.Info("no plaintext tokens found to migrate")
		return 0, nil
	}
	log.Info("found plaintext tokens to migrate", slog.Int("count", len(providers)), slog.Bool("dry_run", dryRun))

	migrated := 0
	var errs []error
	for _, p := range providers {
		l := log.With(slog.String("provider", p))
		if dryRun {
			l.Info("would migrate token (dry-run)")
			migrated++
			continue
		}
		tok, ok, err := plain.Get(ctx, p)
		if err == nil && !ok {
			continue
		}
		if err == nil {
			err = sealed.Upsert(ctx, p, tok)
		}
		if err != nil {
			l.Error("failed to migrate token", slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		l.Info("migrated token")
		migrated++
	}
	return migrated, errors.Join(errs...)
}
