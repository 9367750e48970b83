package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ssemanda/scholaris/internal/pkg/apperrors"
)

// Identity provider modes.
const (
	IdentityModeGoTrue = "gotrue"
	IdentityModeLocal  = "local"
)

// Config structure represents the application configuration
type Config struct {
	Database struct {
		Host            string `yaml:"host" env:"DB_HOST"`
		Port            string `yaml:"port" env:"DB_PORT"`
		User            string `yaml:"user" env:"DB_USER"`
		Password        string `yaml:"password" env:"DB_PASSWORD"`
		DBName          string `yaml:"dbname" env:"DB_NAME"`
		SSLMode         string `yaml:"sslmode" env:"DB_SSLMODE"`
		MaxIdleConns    int    `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS"`
		MaxOpenConns    int    `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME"`
	} `yaml:"database"`

	Identity struct {
		// Mode selects the provisioner implementation: gotrue or local.
		Mode       string `yaml:"mode" env:"IDENTITY_MODE"`
		BaseURL    string `yaml:"base_url" env:"IDENTITY_BASE_URL"`
		ServiceKey string `yaml:"service_key" env:"IDENTITY_SERVICE_KEY"`
		// DefaultPassword is the shared temporary credential assigned to
		// every newly provisioned account. Accounts are always created with
		// a must-change-password flag alongside it.
		DefaultPassword string `yaml:"default_password" env:"IDENTITY_DEFAULT_PASSWORD"`
		RequestTimeout  string `yaml:"request_timeout" env:"IDENTITY_REQUEST_TIMEOUT"`
	} `yaml:"identity"`

	Batch struct {
		// Per-entity batch sizes for bulk registration. Students write the
		// fewest related rows, so their batches are the largest.
		StudentSize  int `yaml:"student_size" env:"BATCH_STUDENT_SIZE"`
		TeacherSize  int `yaml:"teacher_size" env:"BATCH_TEACHER_SIZE"`
		GuardianSize int `yaml:"guardian_size" env:"BATCH_GUARDIAN_SIZE"`
	} `yaml:"batch"`

	Billing struct {
		InvoiceNumberPrefix string `yaml:"invoice_number_prefix" env:"BILLING_INVOICE_PREFIX"`
	} `yaml:"billing"`

	Logging struct {
		Level  string `yaml:"level" env:"LOG_LEVEL"`
		Format string `yaml:"format" env:"LOG_FORMAT"`
	} `yaml:"logging"`
}

// LoadConfig loads configuration from a file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}
	setDefaults(config)

	// Config file is optional; environment variables can carry everything.
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := loadFromEnv(config); err != nil {
		return nil, fmt.Errorf("failed to load from environment: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	config.Database.Host = "localhost"
	config.Database.Port = "5432"
	config.Database.User = "postgres"
	config.Database.Password = "postgres"
	config.Database.DBName = "scholaris"
	config.Database.SSLMode = "disable"
	config.Database.MaxIdleConns = 5
	config.Database.MaxOpenConns = 20
	config.Database.ConnMaxLifetime = "1h"

	config.Identity.Mode = IdentityModeLocal
	config.Identity.RequestTimeout = "10s"

	config.Batch.StudentSize = 100
	config.Batch.TeacherSize = 25
	config.Batch.GuardianSize = 25

	config.Billing.InvoiceNumberPrefix = "INV"

	config.Logging.Level = "info"
	config.Logging.Format = "json"
}

// loadFromEnv overrides configuration with environment variables
func loadFromEnv(config *Config) error {
	return processStructFields(config)
}

// validateConfig ensures that the configuration is valid. Credential
// problems are surfaced as configuration errors so callers abort before any
// side effect.
func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return apperrors.NewConfigurationError("database host is required")
	}

	switch config.Identity.Mode {
	case IdentityModeGoTrue:
		if config.Identity.BaseURL == "" {
			return apperrors.NewConfigurationError("identity base URL is required in gotrue mode")
		}
		if config.Identity.ServiceKey == "" {
			return apperrors.NewConfigurationError("identity service key is required in gotrue mode")
		}
	case IdentityModeLocal:
		// Local mode provisions into the application database directly.
	default:
		return apperrors.NewConfigurationError(fmt.Sprintf("unknown identity mode %q", config.Identity.Mode))
	}

	if config.Identity.DefaultPassword == "" {
		return apperrors.NewConfigurationError("identity default password is required")
	}

	if config.Batch.StudentSize <= 0 || config.Batch.TeacherSize <= 0 || config.Batch.GuardianSize <= 0 {
		return apperrors.NewConfigurationError("batch sizes must be positive")
	}

	if _, err := time.ParseDuration(config.Identity.RequestTimeout); err != nil {
		return apperrors.NewConfigurationError(fmt.Sprintf("invalid identity request timeout: %v", err))
	}

	return nil
}

// GetPostgresConnectionString returns postgres connection string
func (c *Config) GetPostgresConnectionString() string {
	sslMode := c.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.DBName,
		sslMode,
	)
}

// GetEnv gets an environment variable or returns a default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt gets an environment variable as an integer or returns a default value
func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := GetEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// GetEnvAsBool gets an environment variable as a boolean or returns a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	valueStr := strings.ToLower(GetEnv(key, ""))
	if valueStr == "" {
		return defaultValue
	}
	if valueStr == "true" || valueStr == "1" || valueStr == "yes" {
		return true
	}
	if valueStr == "false" || valueStr == "0" || valueStr == "no" {
		return false
	}
	return defaultValue
}
