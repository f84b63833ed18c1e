package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/spa-parameshwar003/bookstore-api/internal/config"
	"github.com/spa-parameshwar003/bookstore-api/internal/events"
	"github.com/spa-parameshwar003/bookstore-api/internal/handler"
	"github.com/spa-parameshwar003/bookstore-api/internal/handler/mw"
	"github.com/spa-parameshwar003/bookstore-api/internal/identity"
	"github.com/spa-parameshwar003/bookstore-api/internal/repository"
	"github.com/spa-parameshwar003/bookstore-api/internal/server"
	"github.com/spa-parameshwar003/bookstore-api/internal/usecase"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookstore",
		Short:         "Bookstore catalog and purchase API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the database schema and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context())
			},
		},
		newAdminCmd(),
	)
	return root
}

func newAdminCmd() *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin flag of existing users",
	}
	admin.AddCommand(
		&cobra.Command{
			Use:   "grant <email>",
			Short: "Give a user admin rights",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSetAdmin(cmd.Context(), args[0], true)
			},
		},
		&cobra.Command{
			Use:   "revoke <email>",
			Short: "Take admin rights away from a user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSetAdmin(cmd.Context(), args[0], false)
			},
		},
	)
	return admin
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
		return nil, err
	}
	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	log.Logger = log.Logger.Level(cfg.LogLevel)
	return cfg, nil
}

func openRepo(ctx context.Context, cfg *config.Config) (*repository.SQLRepo, error) {
	repo, err := repository.NewSQLRepo(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Error().Err(err).Str("driver", cfg.DBDriver).Msg("failed to init repository")
		return nil, err
	}
	if err := repo.Migrate(ctx); err != nil {
		_ = repo.Close()
		log.Error().Err(err).Msg("failed to migrate schema")
		return nil, err
	}
	return repo, nil
}

func runServe(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		log.Warn().Msg("google client id or secret is empty, token exchange will be rejected")
	}

	repo, err := openRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	var publisher usecase.Publisher
	rabbit, err := events.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq not available, continuing without events")
	} else if rabbit != nil {
		defer rabbit.Close()
		publisher = rabbit
		log.Info().Str("exchange", cfg.RabbitExchange).Msg("publishing domain events")
	}

	tokens := mw.NewTokenManager([]byte(cfg.JWTSecret), cfg.JWTTTL)
	idp := identity.NewGoogleClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleTokenURL, cfg.GoogleTimeout)

	svc := usecase.NewService(repo, idp, tokens, publisher)
	h := handler.NewHandler(svc, tokens, repo)
	r := server.NewRouter(h, log.Logger, cfg.CORSAllowedOrigins)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().
		Str("port", cfg.ServerPort).
		Str("driver", cfg.DBDriver).
		Msg("starting bookstore api")
	if err := server.StartHTTPServer(log.Logger.WithContext(ctx), srv, cfg.ShutdownTimeout); err != nil {
		log.Error().Err(err).Msg("http server stopped")
		return err
	}
	return nil
}

func runMigrate(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := openRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()
	log.Info().Str("driver", cfg.DBDriver).Msg("schema is up to date")
	return nil
}

func runSetAdmin(ctx context.Context, email string, isAdmin bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	repo, err := openRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	svc := usecase.NewService(repo, nil, nil, nil)
	if err := svc.SetAdmin(ctx, email, isAdmin); err != nil {
		log.Error().Err(err).Str("email", email).Msg("failed to update admin flag")
		return err
	}
	log.Info().Str("email", email).Bool("is_admin", isAdmin).Msg("admin flag updated")
	return nil
}
