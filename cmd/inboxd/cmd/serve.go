package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/inboxd/inboxd/internal/archive"
	"github.com/inboxd/inboxd/internal/broadcast"
	"github.com/inboxd/inboxd/internal/config"
	"github.com/inboxd/inboxd/internal/database"
	"github.com/inboxd/inboxd/internal/httpapi"
	"github.com/inboxd/inboxd/internal/identity"
	"github.com/inboxd/inboxd/internal/index"
	"github.com/inboxd/inboxd/internal/logging"
	"github.com/inboxd/inboxd/internal/pubsub"
	"github.com/inboxd/inboxd/internal/relay"
	"github.com/inboxd/inboxd/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay service",
	Long: `Start the HTTP/WebSocket relay service.

Configuration is read from the environment (and an optional .env file):
  INBOXD_ADDR            listen address (default ":8080")
  INBOXD_STORE_BACKEND   message store: memory or surreal (default "memory")
  INBOXD_INDEX_BACKEND   recent index: memory or redis (default "memory")
  INBOXD_IDENTITY_FILE   JSON user directory; omit for an empty static directory
  INBOXD_ARCHIVE_DIR     directory for reaped conversation logs (default "archive")
  INBOXD_WS_ORIGINS      comma-separated origins allowed for cross-origin
                         WebSocket connections (default same-origin only)`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServe(cmd.Context()); err != nil {
			slog.Error("Service failed", "error", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	cfg := config.New()
	logging.New()

	directory, cleanup, err := newDirectory(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	msgStore, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	recentIndex, err := newIndex(ctx, cfg)
	if err != nil {
		return err
	}

	archiver := archive.NewFileArchiver(afero.NewOsFs(), cfg.ArchiveDir)

	bridge := pubsub.NewWatermillBridge()
	defer bridge.Close()

	broadcaster := broadcast.New(bridge, bridge)

	r := relay.New(msgStore, recentIndex, broadcaster, directory, archiver)

	srv := httpapi.New(r, directory, httpapi.WithOriginPatterns(cfg.WSOrigins...))
	srv.Start(cfg.Addr)
	return nil
}

func newDirectory(cfg *config.Config) (identity.Directory, func(), error) {
	if cfg.IdentityFile == "" {
		slog.Warn("No identity file configured, starting with an empty directory")
		return identity.NewStaticDirectory(), func() {}, nil
	}
	d, err := identity.NewFileDirectory(cfg.IdentityFile)
	if err != nil {
		return nil, nil, err
	}
	return d, func() { d.Close() }, nil
}

func newStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSurreal:
		db, err := database.NewDB(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("Using SurrealDB message store", "url", cfg.SurrealURL)
		return store.NewSurrealStore(db), nil
	default:
		slog.Info("Using in-memory message store")
		return store.NewMemoryStore(), nil
	}
}

func newIndex(ctx context.Context, cfg *config.Config) (index.Index, error) {
	switch cfg.IndexBackend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		slog.Info("Using Redis recent index", "addr", cfg.RedisAddr)
		return index.NewRedisIndex(client), nil
	default:
		slog.Info("Using in-memory recent index")
		return index.NewMemoryIndex(), nil
	}
}
