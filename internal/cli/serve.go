package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/robalobadob/memory/apps/go-server/assets"
	"github.com/robalobadob/memory/apps/go-server/internal/config"
	"github.com/robalobadob/memory/apps/go-server/internal/game"
	"github.com/robalobadob/memory/apps/go-server/internal/httpserver"
	"github.com/robalobadob/memory/apps/go-server/internal/results"
	"github.com/robalobadob/memory/apps/go-server/internal/store"
	"github.com/robalobadob/memory/apps/go-server/internal/symbols"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP game server",
		Long: `Run the Memory HTTP server.

Configuration comes from the environment (and .env): PORT, LOG_LEVEL,
CLIENT_ORIGIN, DB_PATH, JWT_SECRET, FLIP_BACK_DELAY, SHUFFLE_DELAY,
SESSION_TTL, SYMBOLS_FILE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if rootOpts.LogLevel != "" {
				cfg.LogLevel = rootOpts.LogLevel
			}
			setupLogging(cfg.LogLevel, nil)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config) error {
	alphabet, err := symbols.Load(cfg.SymbolsFile)
	if err != nil {
		return err
	}
	log.Info().Int("pairs", len(alphabet)).Msg("symbols loaded")

	db, err := results.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open results db: %w", err)
	}
	defer db.Close()
	if err := results.Migrate(db, assets.Migrations()); err != nil {
		return fmt.Errorf("migrate results db: %w", err)
	}

	sessions := store.NewMemoryStore()
	go store.RunJanitor(ctx, sessions, max(cfg.SessionTTL/2, time.Second), cfg.SessionTTL, func(n int) {
		log.Info().Int("expired", n).Msg("idle sessions swept")
	})

	srv := httpserver.New(httpserver.Deps{
		Sessions:     sessions,
		Results:      results.NewStore(db),
		JWTSecret:    cfg.JWTSecret,
		ClientOrigin: cfg.ClientOrigin,
		NewEngine: func() (*game.Engine, error) {
			return game.New(game.Options{
				Symbols:       alphabet,
				FlipBackDelay: cfg.FlipBackDelay,
				ShuffleDelay:  cfg.ShuffleDelay,
			})
		},
	})

	log.Info().Str("port", cfg.Port).Msg("starting memory server")
	if err := srv.Start(ctx, ":"+cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server exited: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}
