package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agenci/config"
	"agenci/game"
	httpserver "agenci/http"
	"agenci/store"
	"agenci/words"
	"agenci/ws"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const releaseVersion = "0.1.0"

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, "failed to load .env:", err)
		os.Exit(1)
	}

	cfg := config.Default()
	cobra.CheckErr(newCmd(&cfg).Execute())
}

func newCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "agenci",
		Short:         "Game-session server for a team word-guessing game.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.ApplyEnv(cmd.Flags())
			if err := config.SetupLogger(cfg.LogLevel, cfg.PrettyLog); err != nil {
				return fmt.Errorf("invalid --log-level: %w", err)
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	config.RegisterFlags(cmd.PersistentFlags(), cfg)

	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cfg)
		},
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("agenci v{{.Version}}\n")

	return cmd
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return store.NewPostgresStore(cfg.DatabaseURL, store.PoolOptions{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
		})
	default:
		return store.NewSQLiteStore(cfg.DBPath)
	}
}

func migrate(cfg *config.Config) error {
	if cfg.Driver == config.DriverPostgres {
		if err := store.MigratePostgres(cfg.DatabaseURL); err != nil {
			return err
		}
	} else {
		// opening the store applies pending migrations
		db, err := store.NewSQLiteStore(cfg.DBPath)
		if err != nil {
			return err
		}
		db.Close()
	}
	log.Info().Str("driver", cfg.Driver).Msg("migrations applied")
	return nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	log.Info().Str("version", releaseVersion).Msg("starting agenci server")

	pool, err := words.Load(cfg.WordsFile)
	if err != nil {
		return fmt.Errorf("load word list: %w", err)
	}
	if pool.Len() < game.BoardSize {
		log.Warn().Int("words", pool.Len()).Msg("word list is smaller than a board; room creation will fail")
	}

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	st := store.NewLocked(db)
	defer st.Close()
	log.Info().Str("driver", cfg.Driver).Int("words", pool.Len()).Msg("database initialized")

	lobby := game.NewLobby(st, pool)
	engine := game.NewEngine(st)
	wsManager := ws.NewManager(engine)
	lobbyManager := ws.NewLobbyManager()

	server := httpserver.NewServer(lobby, engine, wsManager, lobbyManager, httpserver.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		PublicURL:      cfg.PublicURL,
		CreateRate:     httpserver.PerMinute(cfg.CreateRate),
		CreateBurst:    cfg.CreateBurst,
	})
	defer server.Close()
	srv := server.GetHTTPServer(cfg.Addr())

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	wsManager.Close()
	lobbyManager.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
	return nil
}
