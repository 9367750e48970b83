package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appMigrations "github.com/ssemanda/scholaris/internal/app/migrations"
	appRepos "github.com/ssemanda/scholaris/internal/app/repositories"
	appServices "github.com/ssemanda/scholaris/internal/app/services"
	"github.com/ssemanda/scholaris/internal/config"
	"github.com/ssemanda/scholaris/internal/db"
	"github.com/ssemanda/scholaris/internal/identity"
	"github.com/ssemanda/scholaris/internal/pkg/helpers"
	"github.com/ssemanda/scholaris/internal/pkg/logger"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	Repos       *appRepos.Repositories
	Services    *appServices.Services
	Provisioner identity.Provisioner
	Database    *db.PostgresDB
	Logger      zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection and runs migrations.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := database.Pool.Ping(ctx); err != nil {
		lgr.Error().Err(err).Msg("Failed to ping database")
		database.Close()
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(database.Pool)

	migrationsDir := "migrations"
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		database.Close()
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}
	if err := migrator.MigrateFromDirectory(migrationsDir); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		database.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	return database, nil
}

// BuildDependencies initializes the repositories and services.
func BuildDependencies(cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Database: database, Logger: lgr}

	deps.Repos = appRepos.NewRepositories(database.Pool, cfg.Billing.InvoiceNumberPrefix)

	provisioner, err := buildProvisioner(cfg, database, lgr)
	if err != nil {
		return nil, err
	}
	deps.Provisioner = provisioner

	deps.Services = appServices.NewServices(deps.Repos, database, provisioner, cfg, lgr)

	lgr.Info().Str("identityMode", cfg.Identity.Mode).Msg("Dependencies initialized")
	return deps, nil
}

func buildProvisioner(cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (identity.Provisioner, error) {
	switch cfg.Identity.Mode {
	case config.IdentityModeGoTrue:
		timeout := helpers.ParseDuration(cfg.Identity.RequestTimeout, 10*time.Second)
		lgr.Info().Str("baseURL", cfg.Identity.BaseURL).Msg("Using remote identity provider")
		return identity.NewAdminClient(cfg.Identity.BaseURL, cfg.Identity.ServiceKey, timeout), nil
	case config.IdentityModeLocal:
		return identity.NewLocalProvisioner(database.Pool), nil
	default:
		return nil, fmt.Errorf("unknown identity mode %q", cfg.Identity.Mode)
	}
}
