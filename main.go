// Command battlesheet is the chess ratings bot. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres and runs idempotent migrations.
//   - Authorizes against Google Sheets and Drive with a service account.
//   - Joins every stored Twitch channel, opens its spreadsheet and answers
//     chat commands.
//   - Keeps the bot account's Twitch token fresh and exposes /healthz,
//     /readyz, /metrics, /channels and the Twitch OAuth flow over HTTP.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/jwt"

	"github.com/onnwee/battlesheet/bot"
	"github.com/onnwee/battlesheet/config"
	"github.com/onnwee/battlesheet/crypto"
	"github.com/onnwee/battlesheet/db"
	"github.com/onnwee/battlesheet/gateway"
	"github.com/onnwee/battlesheet/oauth"
	"github.com/onnwee/battlesheet/rating"
	"github.com/onnwee/battlesheet/server"
	"github.com/onnwee/battlesheet/telemetry"
	"github.com/onnwee/battlesheet/twitchapi"
)

var version = "dev"

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("battlesheet exited with error", slog.Any("err", err))
		stop()
		os.Exit(1)
	}
	logger.Info("shut down")
}

// newLogger configures logging (level + format). Defaults: level=info, format=text.
func newLogger(level, format string) *slog.Logger {
	lvl := slog.LevelInfo
	unknown := false
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		unknown = true
	}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	l := slog.New(handler)
	if unknown {
		l.Warn("unknown LOG_LEVEL, using info", slog.String("value", level))
	}
	return l
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	if err := cfg.ValidateChatReady(); err != nil {
		return err
	}
	if err := cfg.ValidateSheets(); err != nil {
		return err
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTelEndpoint, "battlesheet", version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer shutdownTracing()
	log.Info("telemetry initialized", slog.Bool("tracing", telemetry.IsTracingEnabled()))

	database, err := db.Connect(cfg.DBDsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error("failed to close database", slog.Any("err", err))
		}
	}()
	log.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		log.Warn("versioned migrations failed, falling back to embedded schema",
			slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	} else if v, dirty, err := db.MigrationVersion(database); err == nil {
		log.Info("database schema ready", slog.Uint64("version", uint64(v)), slog.Bool("dirty", dirty))
	}
	if prev, err := db.GetKV(ctx, database, "bot_version"); err != nil {
		log.Warn("failed to read kv", slog.Any("err", err))
	} else if prev != version {
		log.Info("version changed", slog.String("from", prev), slog.String("to", version))
		if err := db.SetKV(ctx, database, "bot_version", version); err != nil {
			log.Warn("failed to write kv", slog.Any("err", err))
		}
	}

	var enc crypto.Encryptor
	if cfg.EncryptionKey != "" {
		aes, err := crypto.NewAESEncryptor(cfg.EncryptionKey)
		if err != nil {
			return fmt.Errorf("ENCRYPTION_KEY: %w", err)
		}
		enc = aes
	} else {
		log.Warn("ENCRYPTION_KEY not set, oauth tokens are stored in plaintext")
	}
	settings := db.NewSettingsStore(database)
	tokens := db.NewTokenStore(database, enc)

	gw, err := newGateway(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := gw.Ping(ctx); err != nil {
		return fmt.Errorf("sheets authorization: %w", err)
	}

	raters := rating.Clients(cfg.ChessComURL, cfg.LichessURL, &http.Client{Timeout: 10 * time.Second}, log)

	// The user token drives chat, whispers and refreshes; the app token only
	// Helix lookups.
	var userCfg *oauth2.Config
	if cfg.TwitchClientID != "" && cfg.TwitchRedirectURI != "" {
		userCfg, err = twitchapi.UserConfig(cfg.TwitchClientID, cfg.TwitchClientSecret, cfg.TwitchRedirectURI,
			twitchapi.ParseScopes(cfg.TwitchScopes))
		if err != nil {
			return err
		}
	}
	irc := bot.NewIRCClient(cfg.TwitchBotUsername, cfg.TwitchOAuthToken)
	tokenReady := make(chan string, 1)
	onToken := func(t db.Token) {
		bot.SetToken(irc, t.Access)
		select {
		case tokenReady <- t.Access:
		default:
		}
	}
	refresher := &oauth.Refresher{
		Store:     tokens,
		Provider:  twitchapi.Provider,
		OnRefresh: onToken,
		Log:       log.With(slog.String("component", "oauth_refresh")),
		Refresh: func(ctx context.Context, refreshToken string) (db.Token, error) {
			if userCfg == nil {
				return db.Token{}, errors.New("twitch oauth not configured")
			}
			tok, err := twitchapi.Refresh(ctx, userCfg, refreshToken)
			if err != nil {
				return db.Token{}, err
			}
			return db.Token{Access: tok.AccessToken, Refresh: tok.RefreshToken,
				Expiry: twitchapi.Expiry(tok), Scope: twitchapi.GrantedScopes(tok)}, nil
		},
	}

	opts := bot.Options{
		Username:  cfg.TwitchBotUsername,
		OwnerID:   cfg.BotOwnerID,
		Prefix:    cfg.BotPrefix,
		DevMode:   cfg.BotDevMode,
		Blacklist: cfg.UserBlacklist,
		Chat:      irc,
		Store:     settings,
		Remote:    gw,
		Raters:    raters,
		Lister:    gw,
		Logger:    log,
	}
	if cfg.TwitchClientID != "" && cfg.TwitchClientSecret != "" {
		helix := &twitchapi.HelixClient{
			ClientID: cfg.TwitchClientID,
			Tokens:   twitchapi.AppTokenSource(ctx, cfg.TwitchClientID, cfg.TwitchClientSecret, ""),
		}
		opts.Users = helix
		if self, err := helix.GetUser(ctx, cfg.TwitchBotUsername); err != nil {
			log.Warn("bot account lookup failed, whispers go to chat", slog.Any("err", err))
		} else {
			opts.Whisper = &twitchapi.Whisperer{Helix: helix, FromID: self.ID, Tokens: refresher.TokenSource(ctx)}
		}
	}
	b, err := bot.New(opts)
	if err != nil {
		return err
	}

	handlers := server.NewHandlers(server.Deps{
		DB:         settings,
		Sheets:     gw,
		Channels:   b,
		Quota:      gw,
		Tokens:     tokens,
		OAuth:      userCfg,
		AdminToken: cfg.AdminToken,
		OnToken:    onToken,
		Logger:     log.With(slog.String("component", "http")),
	})
	go func() {
		if err := server.Start(ctx, cfg.HTTPAddr, server.NewRouter(handlers)); err != nil {
			log.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	if userCfg != nil && cfg.TwitchClientSecret != "" {
		go refresher.Start(ctx)
	}

	if cfg.TwitchOAuthToken == "" {
		tok, ok, err := tokens.Get(ctx, twitchapi.Provider)
		if err != nil {
			return fmt.Errorf("load twitch token: %w", err)
		}
		if ok && tok.Access != "" {
			bot.SetToken(irc, tok.Access)
		} else {
			log.Warn("no twitch user token yet, authorize the bot account via /auth/twitch/start",
				slog.String("addr", cfg.HTTPAddr))
			select {
			case <-tokenReady:
			case <-ctx.Done():
				return nil
			}
		}
	}

	if err := b.Restore(ctx); err != nil {
		return err
	}
	return b.Run(ctx, irc)
}

func newGateway(ctx context.Context, cfg *config.Config, log *slog.Logger) (*gateway.Gateway, error) {
	var (
		jc  *jwt.Config
		err error
	)
	if cfg.GoogleCredentialsFile != "" {
		jc, err = gateway.JWTConfigFromFile(cfg.GoogleCredentialsFile)
	} else {
		jc, err = gateway.ServiceAccount{
			Email:        cfg.GoogleClientEmail,
			PrivateKey:   cfg.GooglePrivateKey,
			PrivateKeyID: cfg.GooglePrivateKeyID,
			TokenURI:     cfg.GoogleTokenURI,
		}.JWTConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("google credentials: %w", err)
	}
	return gateway.New(ctx, gateway.Options{
		Token:          gateway.TokenFromJWT(jc),
		ReauthInterval: cfg.SheetsReauthInterval,
		RateLimitDelay: cfg.SheetsRateLimitDelay,
		DefaultDelay:   cfg.SheetsDefaultDelay,
		MaxAttempts:    cfg.SheetsMaxAttempts,
		Logger:         log.With(slog.String("component", "sheets")),
	})
}
