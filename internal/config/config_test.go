package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssemanda/scholaris/internal/pkg/apperrors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
identity:
  default_password: ChangeMe123!
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, IdentityModeLocal, cfg.Identity.Mode)
	assert.Equal(t, 100, cfg.Batch.StudentSize)
	assert.Equal(t, 25, cfg.Batch.TeacherSize)
	assert.Equal(t, "INV", cfg.Billing.InvoiceNumberPrefix)
}

func TestLoadConfigMissingCredentialsAbortsStartup(t *testing.T) {
	// No file and nothing in the environment: the default password is never
	// assumed, so loading fails before anything touches the database.
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.Classify(err))
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
database:
  dbname: school_test
identity:
  default_password: ChangeMe123!
batch:
  student_size: 10
billing:
  invoice_number_prefix: SCH
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "school_test", cfg.Database.DBName)
	assert.Equal(t, 10, cfg.Batch.StudentSize)
	assert.Equal(t, "SCH", cfg.Billing.InvoiceNumberPrefix)
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
database:
  dbname: from_file
identity:
  default_password: ChangeMe123!
`)
	t.Setenv("DB_NAME", "from_env")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from_env", cfg.Database.DBName)
}

func TestLoadConfigGotrueRequiresCredentials(t *testing.T) {
	path := writeConfig(t, `
identity:
  mode: gotrue
  base_url: https://auth.example.com
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.Classify(err))
}

func TestLoadConfigRejectsMissingDefaultPassword(t *testing.T) {
	path := writeConfig(t, `
identity:
  mode: local
  default_password: ""
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.Classify(err))
}

func TestLoadConfigRejectsUnknownIdentityMode(t *testing.T) {
	path := writeConfig(t, `
identity:
  mode: clipboard
  default_password: x
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.Classify(err))
}

func TestLoadConfigRejectsNonPositiveBatchSize(t *testing.T) {
	path := writeConfig(t, `
identity:
  default_password: x
batch:
  student_size: 0
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindConfiguration, apperrors.Classify(err))
}

func TestGetPostgresConnectionString(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)
	cfg.Identity.DefaultPassword = "x"

	conn := cfg.GetPostgresConnectionString()
	assert.Contains(t, conn, "host=localhost")
	assert.Contains(t, conn, "dbname=scholaris")
}
