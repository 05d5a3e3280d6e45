package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vitalia/portal/internal/config"
	"github.com/vitalia/portal/internal/domain/account"
	"github.com/vitalia/portal/internal/domain/profile"
	"github.com/vitalia/portal/internal/platform/auth"
	"github.com/vitalia/portal/internal/platform/blobstore"
	"github.com/vitalia/portal/internal/platform/db"
	"github.com/vitalia/portal/internal/platform/llm"
	"github.com/vitalia/portal/internal/platform/notification"
	"github.com/vitalia/portal/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "vitalia-server",
		Short: "Vitalia patient and doctor portal API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationsFS picks the --dir flag, then MIGRATIONS_DIR, then the schema
// compiled into the binary.
func migrationsFS(flagDir, cfgDir string) fs.FS {
	switch {
	case flagDir != "":
		return os.DirFS(flagDir)
	case cfgDir != "":
		return os.DirFS(cfgDir)
	default:
		return migrations.FS
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationsFS(dir, cfg.MigrationsDir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationsFS(dir, cfg.MigrationsDir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status, appliedAt := "pending", ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

// demoAccount is created by the seed command.
type demoAccount struct {
	Email    string
	FullName string
	Role     string
	Age      int
	Gender   string
}

var demoAccounts = []demoAccount{
	{Email: "doctor@vitalia.demo", FullName: "Dr. Alex Morgan", Role: auth.RoleDoctor, Age: 45, Gender: profile.GenderOther},
	{Email: "patient@vitalia.demo", FullName: "Sarah Johnson", Role: auth.RolePatient, Age: 32, Gender: profile.GenderFemale},
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the demo doctor and patient accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, _ := cmd.Flags().GetString("password")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			repo := account.NewRepoPG(pool, profile.NewRepoPG(pool))
			created, err := seedDemo(ctx, repo, password)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d demo account(s).\n", created)
			return nil
		},
	}
	cmd.Flags().String("password", "vitalia-demo", "Password for the demo accounts")
	return cmd
}

// seedDemo creates the missing demo accounts and returns how many it created.
func seedDemo(ctx context.Context, repo account.Repository, password string) (int, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, d := range demoAccounts {
		age, gender := d.Age, d.Gender
		err := repo.CreateWithProfile(ctx,
			&account.Account{Email: d.Email, PasswordHash: hash},
			&profile.Profile{Role: d.Role, FullName: d.FullName, Age: &age, Gender: &gender})
		if errors.Is(err, account.ErrEmailTaken) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", d.Email, err)
		}
		created++
	}
	return created, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Sessions
	rdb, err := auth.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rdb.Close()

	// Avatars
	var blobs blobstore.BlobStore
	if cfg.MinioEnabled() {
		blobs, err = blobstore.NewMinIOBlobStore(ctx, blobstore.MinIOConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to object storage")
		}
	} else {
		logger.Warn().Msg("MINIO_ENDPOINT not set, avatars are kept in memory")
		blobs = blobstore.NewInMemoryBlobStore(fmt.Sprintf("http://localhost:%s/blobs", cfg.Port))
	}

	// Email
	var sender notification.EmailSender
	if cfg.SMTPEnabled() {
		sender = notification.NewSMTPEmailSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	} else {
		sender = notification.NewLogEmailSender(logger)
	}

	e := newRouter(deps{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		dbHealth: db.HealthHandler(pool),
		sessions: auth.NewRedisStore(rdb),
		blobs:    blobs,
		mailer:   notification.NewNotificationManager(sender, nil, logger),
		model:    llm.NewClient(cfg.LLMBaseURL, cfg.LLMModel, logger),
	})

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("version", version).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
